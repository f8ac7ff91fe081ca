package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"suptui/model"
)

func newTestServer(t *testing.T) (*httptest.Server, *Store) {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "support.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &Config{
		Port:         "8080",
		DBPath:       "unused",
		OperatorKeys: []string{"secret-key"},
		InactiveDays: 3,
	}
	srv := httptest.NewServer(NewHandler(store, cfg).Router())
	t.Cleanup(srv.Close)
	return srv, store
}

func startChat(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	resp, err := http.Get(srv.URL + "/api/chat/start")
	if err != nil {
		t.Fatalf("GET /chat/start: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}

	var body struct {
		ChatID string `json:"chat_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ChatID == "" {
		t.Fatal("empty chat_id")
	}
	return body.ChatID
}

func fetchMessages(t *testing.T, srv *httptest.Server, chatID string) []model.Message {
	t.Helper()

	resp, err := http.Get(srv.URL + "/api/chat/" + chatID)
	if err != nil {
		t.Fatalf("GET /chat/{id}: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch status = %d", resp.StatusCode)
	}

	var body struct {
		Messages []model.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.Messages
}

func postVisitorMessage(t *testing.T, srv *httptest.Server, chatID, text string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("text", text); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	w.Close()

	resp, err := http.Post(srv.URL+"/api/chat/"+chatID+"/message", w.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST message: %v", err)
	}
	return resp
}

func TestChatLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	chatID := startChat(t, srv)

	if msgs := fetchMessages(t, srv, chatID); len(msgs) != 0 {
		t.Fatalf("new chat has %d messages", len(msgs))
	}

	resp := postVisitorMessage(t, srv, chatID, "my order is missing")
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post status = %d", resp.StatusCode)
	}

	msgs := fetchMessages(t, srv, chatID)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].Sender != model.SenderVisitor || msgs[0].Body() != "my order is missing" {
		t.Errorf("message = %+v", msgs[0])
	}
}

func TestUnknownChatIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/chat/no-such-chat")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func postReply(t *testing.T, srv *httptest.Server, chatID, text, apiKey string) *http.Response {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{"text": text})
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/chat/"+chatID+"/reply", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST reply: %v", err)
	}
	return resp
}

func TestReplyRequiresOperatorKey(t *testing.T) {
	srv, _ := newTestServer(t)
	chatID := startChat(t, srv)

	for _, key := range []string{"", "wrong-key"} {
		resp := postReply(t, srv, chatID, "hello", key)
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("key %q: status = %d, want 403", key, resp.StatusCode)
		}
	}

	resp := postReply(t, srv, chatID, "hello, how can I help?", "secret-key")
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("valid key: status = %d", resp.StatusCode)
	}

	msgs := fetchMessages(t, srv, chatID)
	if len(msgs) != 1 || msgs[0].Sender != model.SenderOperator {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestTypingRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	chatID := startChat(t, srv)

	// Unset flag reads false.
	if typing := getTypingFlag(t, srv, chatID, "operator"); typing {
		t.Error("unset flag should read false")
	}

	payload, _ := json.Marshal(model.TypingStatus{Role: model.SenderOperator, IsTyping: true})
	resp, err := http.Post(srv.URL+"/api/chat/"+chatID+"/typing", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST typing: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set typing status = %d", resp.StatusCode)
	}

	if typing := getTypingFlag(t, srv, chatID, "operator"); !typing {
		t.Error("flag should read true after set")
	}
	// The other role is untouched.
	if typing := getTypingFlag(t, srv, chatID, "visitor"); typing {
		t.Error("visitor flag should still read false")
	}
}

func TestTypingRejectsUnknownRole(t *testing.T) {
	srv, _ := newTestServer(t)
	chatID := startChat(t, srv)

	resp, err := http.Get(srv.URL + "/api/chat/" + chatID + "/typing?role=bot")
	if err != nil {
		t.Fatalf("GET typing: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func getTypingFlag(t *testing.T, srv *httptest.Server, chatID, role string) bool {
	t.Helper()

	resp, err := http.Get(srv.URL + "/api/chat/" + chatID + "/typing?role=" + role)
	if err != nil {
		t.Fatalf("GET typing: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("typing status = %d", resp.StatusCode)
	}

	var body struct {
		IsTyping bool `json:"is_typing"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.IsTyping
}

func TestEmptyMessageStoredAsNull(t *testing.T) {
	srv, _ := newTestServer(t)
	chatID := startChat(t, srv)

	resp := postVisitorMessage(t, srv, chatID, "   ")
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post status = %d", resp.StatusCode)
	}

	msgs := fetchMessages(t, srv, chatID)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].Text != nil {
		t.Errorf("blank text should be stored as NULL, got %q", *msgs[0].Text)
	}
	if msgs[0].Body() != "—" {
		t.Errorf("Body() = %q", msgs[0].Body())
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestMessagePostTouchesChat(t *testing.T) {
	srv, store := newTestServer(t)
	chatID := startChat(t, srv)

	// Backdate the chat, then post; the post must refresh updated_at so
	// the sweeper does not reap an active conversation.
	old := time.Now().Add(-96 * time.Hour).Unix()
	if _, err := store.db.Exec(`UPDATE chats SET updated_at = ? WHERE id = ?`, old, chatID); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	resp := postVisitorMessage(t, srv, chatID, "still here")
	resp.Body.Close()

	n, err := store.DeactivateIdleChats(context.Background(), time.Now().Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("DeactivateIdleChats: %v", err)
	}
	if n != 0 {
		t.Errorf("sweeper deactivated %d chats after fresh activity", n)
	}
}
