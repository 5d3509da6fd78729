package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type inMemEntry struct {
	content string
	vector  []float32
}

// InMemStore keeps memories in process memory, ranked by embedding
// similarity. Without an embedder it falls back to keyword overlap, so
// tests run with no API access.
type InMemStore struct {
	embedder Embedder

	mu         sync.RWMutex
	namespaces map[string][]inMemEntry
}

func NewInMemStore(embedder Embedder) *InMemStore {
	return &InMemStore{
		embedder:   embedder,
		namespaces: make(map[string][]inMemEntry),
	}
}

func (s *InMemStore) Write(ctx context.Context, namespace, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("InMemStore.Write: empty content")
	}
	var vec []float32
	if s.embedder != nil {
		v, err := s.embedder.Embed(ctx, content)
		if err != nil {
			return fmt.Errorf("InMemStore.Write: embed: %w", err)
		}
		vec = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces[namespace] = append(s.namespaces[namespace], inMemEntry{content: content, vector: vec})
	return nil
}

func (s *InMemStore) Search(ctx context.Context, namespace, query string, k int) ([]Snippet, error) {
	var queryVec []float32
	if s.embedder != nil {
		v, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("InMemStore.Search: embed query: %w", err)
		}
		queryVec = v
	}

	s.mu.RLock()
	entries := append([]inMemEntry(nil), s.namespaces[namespace]...)
	s.mu.RUnlock()

	snippets := make([]Snippet, 0, len(entries))
	for _, e := range entries {
		score := 0.0
		if queryVec != nil && e.vector != nil {
			score = Cosine(queryVec, e.vector)
		} else {
			score = keywordOverlap(query, e.content)
		}
		if score <= 0 {
			continue
		}
		snippets = append(snippets, Snippet{Content: e.content, Score: score})
	}
	sort.SliceStable(snippets, func(i, j int) bool { return snippets[i].Score > snippets[j].Score })
	if k > 0 && len(snippets) > k {
		snippets = snippets[:k]
	}
	return snippets, nil
}

// keywordOverlap scores by the fraction of query tokens appearing in
// the content. Crude, but good enough as an offline fallback.
func keywordOverlap(query, content string) float64 {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hits := 0
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}
