// Package api is a thin typed client for the support chat API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"suptui/model"
)

// TransportError covers everything that can go wrong on the wire:
// unreachable server, non-2xx status, malformed JSON. Callers log it and
// move on; the widget never retries automatically.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the chat API rooted at baseURL
// (e.g. "https://support.example.com/api").
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = "http://localhost:8080/api"
	}

	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
	}, nil
}

type startChatResponse struct {
	ChatID string `json:"chat_id"`
}

type fetchChatResponse struct {
	Messages []model.Message `json:"messages"`
}

type typingResponse struct {
	IsTyping bool `json:"is_typing"`
}

type setTypingRequest struct {
	Role     model.Sender `json:"role"`
	IsTyping bool         `json:"is_typing"`
}

// StartChat allocates a new chat session server-side and returns its
// identifier.
func (c *Client) StartChat(ctx context.Context) (string, error) {
	var resp startChatResponse
	if err := c.getJSON(ctx, "start chat", c.baseURL+"/chat/start", &resp); err != nil {
		return "", err
	}
	if resp.ChatID == "" {
		return "", &TransportError{Op: "start chat", Err: fmt.Errorf("empty chat_id in response")}
	}
	return resp.ChatID, nil
}

// FetchChat returns the complete message history for a chat. The snapshot
// is full, not incremental.
func (c *Client) FetchChat(ctx context.Context, chatID string) ([]model.Message, error) {
	var resp fetchChatResponse
	u := fmt.Sprintf("%s/chat/%s", c.baseURL, url.PathEscape(chatID))
	if err := c.getJSON(ctx, "fetch chat", u, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendMessage posts a visitor message as a multipart form. Text
// validation (non-empty) is the caller's job; the wire accepts anything.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("text", text); err != nil {
		return fmt.Errorf("failed to build form: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to build form: %w", err)
	}

	u := fmt.Sprintf("%s/chat/%s/message", c.baseURL, url.PathEscape(chatID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &body)
	if err != nil {
		return &TransportError{Op: "send message", Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "send message", Err: err}
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Op: "send message", Status: resp.StatusCode}
	}
	return nil
}

// OperatorTyping reports whether the operator is currently typing. The
// visitor's own flag is never read back.
func (c *Client) OperatorTyping(ctx context.Context, chatID string) (bool, error) {
	var resp typingResponse
	u := fmt.Sprintf("%s/chat/%s/typing?role=%s", c.baseURL, url.PathEscape(chatID), model.SenderOperator)
	if err := c.getJSON(ctx, "get typing", u, &resp); err != nil {
		return false, err
	}
	return resp.IsTyping, nil
}

// SetTyping publishes a typing flag for a role. The server owns the
// flag's expiry; failures here are the caller's to ignore.
func (c *Client) SetTyping(ctx context.Context, chatID string, role model.Sender, isTyping bool) error {
	payload, err := json.Marshal(setTypingRequest{Role: role, IsTyping: isTyping})
	if err != nil {
		return fmt.Errorf("failed to marshal typing request: %w", err)
	}

	u := fmt.Sprintf("%s/chat/%s/typing", c.baseURL, url.PathEscape(chatID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Op: "set typing", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "set typing", Err: err}
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Op: "set typing", Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, op, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Op: op, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
