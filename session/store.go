// Package session persists the opaque chat identifier across runs, so a
// returning visitor resumes the same conversation.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoSession is returned by Get before the first chat has been started.
var ErrNoSession = errors.New("no stored chat session")

type record struct {
	ChatID    string    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps the chat identifier in a JSON file under the data
// directory. An identifier, once stored, is reused indefinitely; nothing
// in the widget ever expires it.
type Store struct {
	path string
}

// NewStore creates a session store rooted at dataDir.
func NewStore(dataDir string) (*Store, error) {
	// 0700 - data dir holds conversation state
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Store{
		path: filepath.Join(dataDir, "chat.json"),
	}, nil
}

// Get returns the stored chat identifier, or ErrNoSession if none has
// been persisted yet.
func (s *Store) Get() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("failed to read session file: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("failed to unmarshal session file: %w", err)
	}
	if rec.ChatID == "" {
		return "", ErrNoSession
	}

	return rec.ChatID, nil
}

// Set persists the chat identifier, overwriting any previous one.
func (s *Store) Set(chatID string) error {
	rec := record{ChatID: chatID, CreatedAt: time.Now()}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// 0600 - the identifier names a private conversation
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Clear removes the stored identifier. The widget never calls this
// itself; it exists for external resets.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
