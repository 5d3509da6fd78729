package memory

import (
	"context"
	"fmt"
	"math"

	"google.golang.org/genai"
)

// DefaultEmbeddingModel produces 768-dimensional vectors.
const DefaultEmbeddingModel = "gemini-embedding-001"

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GeminiEmbedder embeds via the Gemini embedding API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates an embedder. Credentials come from the
// environment, same as the generator client.
func NewGeminiEmbedder(ctx context.Context, model string) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiEmbedder: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &GeminiEmbedder{client: client, model: model}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents,
		&genai.EmbedContentConfig{
			TaskType: "SEMANTIC_SIMILARITY",
		})
	if err != nil {
		return nil, fmt.Errorf("GeminiEmbedder.Embed: embed content: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("GeminiEmbedder.Embed: no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}

// Cosine computes cosine similarity. Zero when either vector is empty,
// mismatched, or all zeros.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
