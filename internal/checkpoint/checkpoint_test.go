package checkpoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/expense-agent/internal/conversation"
	"github.com/dvloznov/expense-agent/internal/domain"
)

func sampleState() *conversation.ThreadState {
	st := conversation.NewThreadState("t1", "u1")
	st.Append(conversation.RoleUser, "coffee 28 yuan", time.Date(2026, 8, 23, 14, 37, 0, 0, time.UTC))
	st.Awaiting = conversation.AwaitingFill
	st.PendingFields = []string{"item"}
	st.Draft = &domain.Draft{Type: domain.TypeExpense, Amount: 28, Currency: "CNY", OccurredAt: "2026-08-23T14:37"}
	return st
}

func testRoundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	got, err := store.Load(ctx, "missing")
	if err != nil {
		t.Fatalf("Load(missing) error = %v", err)
	}
	if got != nil {
		t.Fatal("Load of an unknown thread must return nil, nil")
	}

	if err := store.Save(ctx, "t1", sampleState()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err = store.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil {
		t.Fatal("Load() returned nil for a saved thread")
	}
	if got.Awaiting != conversation.AwaitingFill {
		t.Errorf("awaiting = %q, want fill", got.Awaiting)
	}
	if got.Draft == nil || got.Draft.Amount != 28 {
		t.Errorf("draft = %+v", got.Draft)
	}
	if len(got.Messages) != 1 || got.Messages[0].Text != "coffee 28 yuan" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestInMemoryStoreRoundTrip(t *testing.T) {
	testRoundTrip(t, NewInMemoryStore())
}

func TestInMemoryStoreIsolation(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	st := sampleState()
	if err := store.Save(ctx, "t1", st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	st.PendingFields[0] = "mutated"

	got, _ := store.Load(ctx, "t1")
	if got.PendingFields[0] != "item" {
		t.Error("store must not share slices with the caller")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "checkpoints.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()
	testRoundTrip(t, store)
}

func TestSQLiteStoreOverwrite(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "checkpoints.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	st := sampleState()
	if err := store.Save(ctx, "t1", st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	st.ClearDraft()
	if err := store.Save(ctx, "t1", st); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, _ := store.Load(ctx, "t1")
	if got.Draft != nil || got.Awaiting != "" {
		t.Error("save must replace the previous checkpoint")
	}
}
