package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yono39/cytui/domain"
)

// Store keeps a local log of chat messages per channel so the UI can
// show recent history before live events start flowing.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	store := &Store{db: db}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			channel    TEXT    NOT NULL,
			username   TEXT    NOT NULL,
			body       TEXT    NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel, id);
	`)
	if err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

// Append records one chat line. Only user messages are worth keeping;
// everything else is transient session chrome.
func (s *Store) Append(channel string, msg domain.ChatMessage) error {
	if msg.Type != domain.MessageUser {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (channel, username, body, created_at) VALUES (?, ?, ?, ?)`,
		channel, msg.User, msg.Text, msg.Time.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Recent returns the last limit messages for the channel, oldest first.
func (s *Store) Recent(channel string, limit int) ([]domain.ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT username, body, created_at
		FROM messages
		WHERE channel = ?
		ORDER BY id DESC
		LIMIT ?
	`, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var username, body string
		var createdAt int64
		if err := rows.Scan(&username, &body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		messages = append(messages, domain.NewUserMessage(time.UnixMilli(createdAt), username, body))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}

	// Query walks newest-first; present oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Prune trims a channel's log down to keep rows.
func (s *Store) Prune(channel string, keep int) error {
	_, err := s.db.Exec(`
		DELETE FROM messages
		WHERE channel = ? AND id NOT IN (
			SELECT id FROM messages WHERE channel = ? ORDER BY id DESC LIMIT ?
		)
	`, channel, channel, keep)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
