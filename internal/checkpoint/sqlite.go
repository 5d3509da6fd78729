package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dvloznov/expense-agent/internal/conversation"
)

// SQLiteStore persists checkpoints as JSON blobs in a local SQLite
// database, one row per thread.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the checkpoint database at
// path and ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteStore: open %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS threads (
			thread_id  TEXT PRIMARY KEY,
			state      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("NewSQLiteStore: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Load(ctx context.Context, threadID string) (*conversation.ThreadState, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM threads WHERE thread_id = ?`, threadID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("SQLiteStore.Load: query thread %s: %w", threadID, err)
	}
	var st conversation.ThreadState
	if err := json.Unmarshal([]byte(blob), &st); err != nil {
		return nil, fmt.Errorf("SQLiteStore.Load: decode state for thread %s: %w", threadID, err)
	}
	return &st, nil
}

func (s *SQLiteStore) Save(ctx context.Context, threadID string, state *conversation.ThreadState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("SQLiteStore.Save: encode state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO threads (thread_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		threadID, string(blob), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("SQLiteStore.Save: upsert thread %s: %w", threadID, err)
	}
	return nil
}
