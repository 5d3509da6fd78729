// Package memory is the assistant's long-term recall: free-text notes
// and indexed transcript chunks, searchable by semantic similarity.
package memory

import "context"

// DefaultNamespace holds user memories written through the model's
// manage_memory tool.
const DefaultNamespace = "memories"

// UserNamespace scopes the default namespace to one user so memories
// never leak across users.
func UserNamespace(userID string) string {
	return DefaultNamespace + ":" + userID
}

// Snippet is one retrieved memory with its similarity score.
type Snippet struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Store searches and writes memories grouped by namespace.
type Store interface {
	// Search returns up to k snippets most relevant to query, best first.
	Search(ctx context.Context, namespace, query string, k int) ([]Snippet, error)
	// Write stores one memory entry.
	Write(ctx context.Context, namespace, content string) error
}
