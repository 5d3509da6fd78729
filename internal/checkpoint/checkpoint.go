// Package checkpoint persists per-thread conversation state between
// turns. A turn loads the thread's state, transforms it, and saves it
// back; the store is the only place state survives process restarts.
package checkpoint

import (
	"context"

	"github.com/dvloznov/expense-agent/internal/conversation"
)

// Store loads and saves thread state keyed by thread ID.
type Store interface {
	// Load returns the saved state for a thread, or (nil, nil) when the
	// thread has no checkpoint yet.
	Load(ctx context.Context, threadID string) (*conversation.ThreadState, error)
	// Save replaces the thread's checkpoint.
	Save(ctx context.Context, threadID string, state *conversation.ThreadState) error
}
