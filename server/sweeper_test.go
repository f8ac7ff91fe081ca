package server

import (
	"context"
	"testing"
	"time"
)

func TestSweeperDeactivatesIdleChats(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chatID, err := store.CreateChat(ctx)
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	old := time.Now().Add(-96 * time.Hour).Unix()
	if _, err := store.db.Exec(`UPDATE chats SET updated_at = ? WHERE id = ?`, old, chatID); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	StartSweeper(ctx, store, 10*time.Millisecond, 72*time.Hour)

	deadline := time.After(time.Second)
	for {
		if _, err := store.GetMessages(ctx, chatID); err == ErrChatNotFound {
			return
		}
		select {
		case <-deadline:
			t.Fatal("sweeper never deactivated the idle chat")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
