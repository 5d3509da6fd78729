package memory

import (
	"context"
	"fmt"
	"strings"
)

const (
	// chunkBlockLines is the window length when splitting transcripts
	// into indexable chunks; chunkOverlapLines is carried between
	// consecutive chunks so context is not cut mid-exchange.
	chunkBlockLines   = 6
	chunkOverlapLines = 3
)

// ChunkLines splits lines into overlapping blocks of chunkBlockLines,
// stepping by blockLen-overlap. A short tail that would otherwise be
// lost becomes its own final chunk.
func ChunkLines(lines []string) []string {
	var kept []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	step := chunkBlockLines - chunkOverlapLines

	var chunks []string
	for start := 0; ; start += step {
		end := start + chunkBlockLines
		if end >= len(kept) {
			chunks = append(chunks, strings.Join(kept[start:], "\n"))
			break
		}
		chunks = append(chunks, strings.Join(kept[start:end], "\n"))
	}
	return chunks
}

// IndexLines chunks the lines and writes each chunk into the store
// under the given namespace.
func IndexLines(ctx context.Context, store Store, namespace string, lines []string) (int, error) {
	chunks := ChunkLines(lines)
	for i, chunk := range chunks {
		if err := store.Write(ctx, namespace, chunk); err != nil {
			return i, fmt.Errorf("IndexLines: write chunk %d: %w", i, err)
		}
	}
	return len(chunks), nil
}
