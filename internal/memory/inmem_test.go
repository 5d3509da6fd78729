package memory

import (
	"context"
	"testing"
)

func TestInMemStoreKeywordFallback(t *testing.T) {
	store := NewInMemStore(nil)
	ctx := context.Background()

	entries := []string{
		"user buys coffee most mornings",
		"user's rent is 3000 yuan per month",
		"user is saving for a bike trip",
	}
	for _, e := range entries {
		if err := store.Write(ctx, "memories:u1", e); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	got, err := store.Search(ctx, "memories:u1", "coffee mornings", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) == 0 {
		t.Fatal("Search() returned nothing")
	}
	if got[0].Content != "user buys coffee most mornings" {
		t.Errorf("best match = %q", got[0].Content)
	}
}

func TestInMemStoreNamespaceIsolation(t *testing.T) {
	store := NewInMemStore(nil)
	ctx := context.Background()

	if err := store.Write(ctx, "memories:u1", "u1 likes coffee"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := store.Search(ctx, "memories:u2", "coffee", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Error("memories must not leak across namespaces")
	}
}

func TestInMemStoreRejectsEmpty(t *testing.T) {
	store := NewInMemStore(nil)
	if err := store.Write(context.Background(), "n", "   "); err == nil {
		t.Error("Write of blank content should fail")
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"mismatched length", []float32{1}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); got != tt.want {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}
