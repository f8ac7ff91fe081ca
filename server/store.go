package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"suptui/model"
)

// ErrChatNotFound is returned for operations against an unknown or
// deactivated chat.
var ErrChatNotFound = errors.New("chat not found")

// Store is the SQLite-backed persistence layer for chats, messages and
// typing flags.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent widget polls and operator writes.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS visitors (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		visitor_id TEXT NOT NULL REFERENCES visitors(id),
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chats_updated ON chats(updated_at) WHERE is_active = 1;

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id TEXT NOT NULL REFERENCES chats(id),
		sender TEXT NOT NULL,
		text TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id);

	CREATE TABLE IF NOT EXISTS typing (
		chat_id TEXT NOT NULL,
		role TEXT NOT NULL,
		is_typing INTEGER NOT NULL DEFAULT 0,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (chat_id, role)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateChat allocates a visitor row and an active chat, returning the
// chat identifier the widget will persist.
func (s *Store) CreateChat(ctx context.Context) (string, error) {
	visitorID := uuid.NewString()
	chatID := uuid.NewString()
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO visitors (id, created_at) VALUES (?, ?)`,
		visitorID, now,
	); err != nil {
		return "", fmt.Errorf("insert visitor: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chats (id, visitor_id, is_active, created_at, updated_at) VALUES (?, ?, 1, ?, ?)`,
		chatID, visitorID, now, now,
	); err != nil {
		return "", fmt.Errorf("insert chat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return chatID, nil
}

// ChatExists reports whether an active chat with this id exists.
func (s *Store) ChatExists(ctx context.Context, chatID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM chats WHERE id = ? AND is_active = 1`, chatID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query chat: %w", err)
	}
	return true, nil
}

// GetMessages returns the chat's full history in insertion order.
func (s *Store) GetMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	exists, err := s.ChatExists(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrChatNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sender, text, created_at FROM messages WHERE chat_id = ? ORDER BY id`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var (
			sender    string
			text      sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&sender, &text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		msg := model.Message{
			Sender:    model.Sender(sender),
			CreatedAt: time.Unix(createdAt, 0),
		}
		if text.Valid {
			t := text.String
			msg.Text = &t
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// AddMessage appends a message and touches the chat's updated_at so the
// sweeper sees it as active.
func (s *Store) AddMessage(ctx context.Context, chatID string, sender model.Sender, text *string) error {
	exists, err := s.ChatExists(ctx, chatID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrChatNotFound
	}

	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var textVal interface{}
	if text != nil {
		textVal = *text
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (chat_id, sender, text, created_at) VALUES (?, ?, ?, ?)`,
		chatID, string(sender), textVal, now,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chats SET updated_at = ? WHERE id = ?`, now, chatID,
	); err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SetTyping upserts a role's typing flag with a fresh expiry.
func (s *Store) SetTyping(ctx context.Context, chatID string, role model.Sender, isTyping bool, expiresAt time.Time) error {
	exists, err := s.ChatExists(ctx, chatID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrChatNotFound
	}

	flag := 0
	if isTyping {
		flag = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO typing (chat_id, role, is_typing, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id, role) DO UPDATE SET
			is_typing = excluded.is_typing,
			expires_at = excluded.expires_at`,
		chatID, string(role), flag, expiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert typing flag: %w", err)
	}
	return nil
}

// GetTyping reads a role's typing flag. An expired flag reads false; a
// flag that was never set reads false.
func (s *Store) GetTyping(ctx context.Context, chatID string, role model.Sender, now time.Time) (bool, error) {
	exists, err := s.ChatExists(ctx, chatID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, ErrChatNotFound
	}

	var (
		flag      int
		expiresAt int64
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT is_typing, expires_at FROM typing WHERE chat_id = ? AND role = ?`,
		chatID, string(role),
	).Scan(&flag, &expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query typing flag: %w", err)
	}

	if now.Unix() >= expiresAt {
		return false, nil
	}
	return flag == 1, nil
}

// DeactivateIdleChats marks chats idle since before cutoff as inactive
// and returns how many were affected.
func (s *Store) DeactivateIdleChats(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chats SET is_active = 0 WHERE is_active = 1 AND updated_at < ?`,
		cutoff.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate idle chats: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rows, nil
}
