package model

import "time"

// Sender identifies which side of the conversation a message came from.
type Sender string

const (
	SenderVisitor  Sender = "visitor"
	SenderOperator Sender = "operator"
)

// Message is one entry in the conversation, as returned by the chat API.
// The server-returned list is the sole source of truth; the client never
// mutates past messages, it only repaints from fresh snapshots.
type Message struct {
	Sender    Sender    `json:"sender"`
	Text      *string   `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Body returns the message text, or the placeholder glyph for messages
// stored without text (e.g. file-only messages).
func (m Message) Body() string {
	if m.Text == nil || *m.Text == "" {
		return "—"
	}
	return *m.Text
}

// TypingStatus is a per-role flag with a server-owned expiry; the client
// only sets its own flag and reads back the operator's.
type TypingStatus struct {
	Role     Sender `json:"role"`
	IsTyping bool   `json:"is_typing"`
}
