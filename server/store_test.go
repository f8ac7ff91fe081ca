package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"suptui/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "support.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTypingFlagExpires(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chatID, err := store.CreateChat(ctx)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	now := time.Now()
	if err := store.SetTyping(ctx, chatID, model.SenderOperator, true, now.Add(TypingTTL)); err != nil {
		t.Fatalf("SetTyping: %v", err)
	}

	typing, err := store.GetTyping(ctx, chatID, model.SenderOperator, now)
	if err != nil {
		t.Fatalf("GetTyping: %v", err)
	}
	if !typing {
		t.Error("fresh flag should read true")
	}

	// Reading after the expiry instant must yield false even though the
	// stored flag is still 1.
	typing, err = store.GetTyping(ctx, chatID, model.SenderOperator, now.Add(TypingTTL+time.Second))
	if err != nil {
		t.Fatalf("GetTyping after expiry: %v", err)
	}
	if typing {
		t.Error("expired flag should read false")
	}
}

func TestTypingFlagRefresh(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chatID, err := store.CreateChat(ctx)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	now := time.Now()
	if err := store.SetTyping(ctx, chatID, model.SenderVisitor, true, now.Add(TypingTTL)); err != nil {
		t.Fatalf("SetTyping: %v", err)
	}
	// A later refresh extends the window.
	if err := store.SetTyping(ctx, chatID, model.SenderVisitor, true, now.Add(3*TypingTTL)); err != nil {
		t.Fatalf("SetTyping refresh: %v", err)
	}

	typing, err := store.GetTyping(ctx, chatID, model.SenderVisitor, now.Add(2*TypingTTL))
	if err != nil {
		t.Fatalf("GetTyping: %v", err)
	}
	if !typing {
		t.Error("refreshed flag should still read true")
	}
}

func TestAddMessagePreservesOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chatID, err := store.CreateChat(ctx)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	texts := []string{"first", "second", "third"}
	for _, txt := range texts {
		txt := txt
		if err := store.AddMessage(ctx, chatID, model.SenderVisitor, &txt); err != nil {
			t.Fatalf("AddMessage(%q): %v", txt, err)
		}
	}

	msgs, err := store.GetMessages(ctx, chatID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != len(texts) {
		t.Fatalf("got %d messages", len(msgs))
	}
	for i, want := range texts {
		if msgs[i].Body() != want {
			t.Errorf("message %d = %q, want %q", i, msgs[i].Body(), want)
		}
	}
}

func TestOperationsOnUnknownChat(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	text := "hi"
	if err := store.AddMessage(ctx, "nope", model.SenderVisitor, &text); err != ErrChatNotFound {
		t.Errorf("AddMessage err = %v, want ErrChatNotFound", err)
	}
	if _, err := store.GetMessages(ctx, "nope"); err != ErrChatNotFound {
		t.Errorf("GetMessages err = %v, want ErrChatNotFound", err)
	}
	if _, err := store.GetTyping(ctx, "nope", model.SenderOperator, time.Now()); err != ErrChatNotFound {
		t.Errorf("GetTyping err = %v, want ErrChatNotFound", err)
	}
}

func TestDeactivateIdleChats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	idleChat, err := store.CreateChat(ctx)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	activeChat, err := store.CreateChat(ctx)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	old := time.Now().Add(-96 * time.Hour).Unix()
	if _, err := store.db.Exec(`UPDATE chats SET updated_at = ? WHERE id = ?`, old, idleChat); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	n, err := store.DeactivateIdleChats(ctx, time.Now().Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("DeactivateIdleChats: %v", err)
	}
	if n != 1 {
		t.Errorf("deactivated %d chats, want 1", n)
	}

	// A deactivated chat behaves like a missing one.
	if _, err := store.GetMessages(ctx, idleChat); err != ErrChatNotFound {
		t.Errorf("idle chat err = %v, want ErrChatNotFound", err)
	}
	if _, err := store.GetMessages(ctx, activeChat); err != nil {
		t.Errorf("active chat err = %v", err)
	}
}
