package checkpoint

import (
	"context"
	"sync"

	"github.com/dvloznov/expense-agent/internal/conversation"
)

// InMemoryStore keeps checkpoints in process memory. Used by tests and
// by the chat CLI when no persistence is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*conversation.ThreadState
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]*conversation.ThreadState)}
}

func (s *InMemoryStore) Load(_ context.Context, threadID string) (*conversation.ThreadState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.threads[threadID]
	if !ok {
		return nil, nil
	}
	return st.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, threadID string, state *conversation.ThreadState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadID] = state.Clone()
	return nil
}
