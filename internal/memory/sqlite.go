package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists memories in a local SQLite database. Embedding
// vectors are stored as JSON and similarity is computed in process;
// fine at personal-assistant scale.
type SQLiteStore struct {
	db       *sql.DB
	embedder Embedder
}

// NewSQLiteStore opens (creating if needed) the memory database at path
// and ensures the schema exists. The embedder may be nil, in which case
// search falls back to keyword overlap.
func NewSQLiteStore(path string, embedder Embedder) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteStore: open %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS memories (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			namespace  TEXT NOT NULL,
			content    TEXT NOT NULL,
			embedding  TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_memories_namespace ON memories (namespace)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("NewSQLiteStore: create schema: %w", err)
	}
	return &SQLiteStore{db: db, embedder: embedder}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Write(ctx context.Context, namespace, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("SQLiteStore.Write: empty content")
	}
	embedding := ""
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, content)
		if err != nil {
			return fmt.Errorf("SQLiteStore.Write: embed: %w", err)
		}
		blob, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("SQLiteStore.Write: encode embedding: %w", err)
		}
		embedding = string(blob)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (namespace, content, embedding, created_at) VALUES (?, ?, ?, ?)`,
		namespace, content, embedding, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("SQLiteStore.Write: insert memory: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, namespace, query string, k int) ([]Snippet, error) {
	var queryVec []float32
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("SQLiteStore.Search: embed query: %w", err)
		}
		queryVec = vec
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT content, embedding FROM memories WHERE namespace = ?`, namespace)
	if err != nil {
		return nil, fmt.Errorf("SQLiteStore.Search: query memories: %w", err)
	}
	defer rows.Close()

	var snippets []Snippet
	for rows.Next() {
		var content, embedding string
		if err := rows.Scan(&content, &embedding); err != nil {
			return nil, fmt.Errorf("SQLiteStore.Search: scan memory: %w", err)
		}
		score := 0.0
		if queryVec != nil && embedding != "" {
			var vec []float32
			if err := json.Unmarshal([]byte(embedding), &vec); err != nil {
				return nil, fmt.Errorf("SQLiteStore.Search: decode embedding: %w", err)
			}
			score = Cosine(queryVec, vec)
		} else {
			score = keywordOverlap(query, content)
		}
		if score <= 0 {
			continue
		}
		snippets = append(snippets, Snippet{Content: content, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SQLiteStore.Search: iterate memories: %w", err)
	}

	sort.SliceStable(snippets, func(i, j int) bool { return snippets[i].Score > snippets[j].Score })
	if k > 0 && len(snippets) > k {
		snippets = snippets[:k]
	}
	return snippets, nil
}
