package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/dvloznov/expense-agent/internal/checkpoint"
	"github.com/dvloznov/expense-agent/internal/conversation"
	"github.com/dvloznov/expense-agent/internal/domain"
	"github.com/dvloznov/expense-agent/internal/llm"
	"github.com/dvloznov/expense-agent/internal/memory"
)

// stubGenerator replays canned structured responses in call order and
// returns fixed text for free-form and tool-assisted generation.
type stubGenerator struct {
	mu        sync.Mutex
	jsonQueue []string
	jsonErr   error
	text      string
	textErr   error
	toolsText string
	toolsErr  error

	jsonCalls  int
	textCalls  int
	toolsCalls int
}

func (g *stubGenerator) GenerateText(ctx context.Context, system string, msgs []conversation.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.textCalls++
	return g.text, g.textErr
}

func (g *stubGenerator) GenerateJSON(ctx context.Context, system string, msgs []conversation.Message, schema *genai.Schema, out any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.jsonCalls++
	if g.jsonErr != nil {
		return g.jsonErr
	}
	if len(g.jsonQueue) == 0 {
		return fmt.Errorf("stubGenerator: no canned response for call %d", g.jsonCalls)
	}
	raw := g.jsonQueue[0]
	g.jsonQueue = g.jsonQueue[1:]
	return json.Unmarshal([]byte(raw), out)
}

func (g *stubGenerator) GenerateWithTools(ctx context.Context, system string, msgs []conversation.Message, tools []llm.Tool) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.toolsCalls++
	return g.toolsText, g.toolsErr
}

// mockLedger records inserts and captures the last aggregate plan.
type mockLedger struct {
	mu        sync.Mutex
	inserted  []domain.TransactionRecord
	users     []string
	lastPlan  *domain.QueryPlan
	insertErr error
	aggErr    error
}

func (m *mockLedger) Insert(ctx context.Context, userID string, rec *domain.TransactionRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return "", m.insertErr
	}
	m.inserted = append(m.inserted, *rec)
	m.users = append(m.users, userID)
	return fmt.Sprintf("row-%d", len(m.inserted)), nil
}

func (m *mockLedger) Aggregate(ctx context.Context, userID string, plan *domain.QueryPlan) (*domain.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aggErr != nil {
		return nil, m.aggErr
	}
	p := *plan
	m.lastPlan = &p
	zero := int64(0)
	return &domain.QueryResult{Status: domain.QueryOK, Metric: plan.Metric, TotalRows: 0, TotalMinor: &zero}, nil
}

// mockMemory counts searches and records writes.
type mockMemory struct {
	mu          sync.Mutex
	snippets    []memory.Snippet
	searchCalls int
	writes      []string
}

func (m *mockMemory) Search(ctx context.Context, namespace, query string, k int) ([]memory.Snippet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	return m.snippets, nil
}

func (m *mockMemory) Write(ctx context.Context, namespace, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, content)
	return nil
}

func newTestAgent(t *testing.T, gen *stubGenerator, led *mockLedger, mem *mockMemory) (*Agent, Checkpoints) {
	t.Helper()
	checkpoints := checkpoint.NewInMemoryStore()
	clock := func() time.Time { return time.Date(2026, 8, 23, 14, 37, 0, 0, time.UTC) }
	ag, err := New(Options{
		Generator:   gen,
		Ledger:      led,
		Memory:      mem,
		Checkpoints: checkpoints,
		Clock:       clock,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return ag, checkpoints
}

func TestHandleTurnLogExpenseComplete(t *testing.T) {
	gen := &stubGenerator{
		jsonQueue: []string{
			`{"intent":"log_expense"}`,
			`{"item":"coffee","amount":28,"occurred_at_text":"just now"}`,
		},
		text: "Saved: coffee, 28 CNY.",
	}
	led := &mockLedger{}
	ag, checkpoints := newTestAgent(t, gen, led, &mockMemory{})

	reply, err := ag.HandleTurn(context.Background(), "t1", "u1", "coffee 28 yuan just now")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply != "Saved: coffee, 28 CNY." {
		t.Errorf("reply = %q", reply)
	}

	if len(led.inserted) != 1 {
		t.Fatalf("inserted %d records, want 1", len(led.inserted))
	}
	rec := led.inserted[0]
	if rec.Item != "coffee" || rec.AmountMinor != 2800 || rec.Currency != "CNY" {
		t.Errorf("record = %+v", rec)
	}
	if rec.OccurredAt.Format(domain.OccurredAtLayout) != "2026-08-23T14:37" {
		t.Errorf("OccurredAt = %v", rec.OccurredAt)
	}
	if led.users[0] != "u1" {
		t.Errorf("insert scoped to user %q, want u1", led.users[0])
	}

	st, err := checkpoints.Load(context.Background(), "t1")
	if err != nil || st == nil {
		t.Fatalf("checkpoint missing: %v", err)
	}
	if st.Awaiting != "" || st.Draft != nil {
		t.Error("completed log should not leave a draft waiting")
	}
	if st.DBResult != nil || st.QueryPlan != nil || st.QueryResult != nil {
		t.Error("finalizer must clear ephemeral outcomes before checkpointing")
	}
}

func TestHandleTurnIncompleteThenFill(t *testing.T) {
	gen := &stubGenerator{
		jsonQueue: []string{
			`{"intent":"log_expense"}`,
			`{"amount":10}`,
		},
		text: "What was the 10 yuan for?",
	}
	led := &mockLedger{}
	ag, checkpoints := newTestAgent(t, gen, led, &mockMemory{})
	ctx := context.Background()

	if _, err := ag.HandleTurn(ctx, "t1", "u1", "spent 10 yuan"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}
	st, _ := checkpoints.Load(ctx, "t1")
	if st.Awaiting != conversation.AwaitingFill {
		t.Fatalf("awaiting = %q, want fill", st.Awaiting)
	}
	if len(st.PendingFields) != 1 || st.PendingFields[0] != "item" {
		t.Errorf("pending = %v, want [item]", st.PendingFields)
	}
	if len(led.inserted) != 0 {
		t.Error("incomplete candidate must not be persisted")
	}

	gen.mu.Lock()
	gen.jsonQueue = []string{`{"action":"fill","candidate":{"item":"breakfast","amount":10}}`}
	gen.text = "Saved: breakfast, 10 CNY."
	gen.mu.Unlock()

	if _, err := ag.HandleTurn(ctx, "t1", "u1", "for breakfast"); err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if len(led.inserted) != 1 {
		t.Fatalf("inserted %d records after fill, want 1", len(led.inserted))
	}
	if led.inserted[0].Item != "breakfast" || led.inserted[0].AmountMinor != 1000 {
		t.Errorf("record = %+v", led.inserted[0])
	}
	st, _ = checkpoints.Load(ctx, "t1")
	if st.Awaiting != "" || st.Draft != nil {
		t.Error("fill completion should clear the wait state")
	}
}

func TestHandleTurnFillKeepsDraftTime(t *testing.T) {
	gen := &stubGenerator{
		jsonQueue: []string{
			`{"intent":"log_expense"}`,
			`{"amount":45,"occurred_at_text":"yesterday evening"}`,
		},
		text: "What was it for?",
	}
	led := &mockLedger{}
	ag, _ := newTestAgent(t, gen, led, &mockMemory{})
	ctx := context.Background()

	if _, err := ag.HandleTurn(ctx, "t1", "u1", "45 kuai yesterday evening"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}

	gen.mu.Lock()
	gen.jsonQueue = []string{`{"action":"fill","candidate":{"item":"dinner","amount":45}}`}
	gen.text = "Saved."
	gen.mu.Unlock()

	if _, err := ag.HandleTurn(ctx, "t1", "u1", "dinner"); err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if len(led.inserted) != 1 {
		t.Fatalf("inserted %d records, want 1", len(led.inserted))
	}
	got := led.inserted[0].OccurredAt.Format(domain.OccurredAtLayout)
	if got != "2026-08-22T19:00" {
		t.Errorf("merged record kept time %s, want the draft's 2026-08-22T19:00", got)
	}
}

func TestHandleTurnCancel(t *testing.T) {
	gen := &stubGenerator{
		jsonQueue: []string{
			`{"intent":"log_expense"}`,
			`{"amount":10}`,
		},
		text: "What was it for?",
	}
	led := &mockLedger{}
	ag, checkpoints := newTestAgent(t, gen, led, &mockMemory{})
	ctx := context.Background()

	if _, err := ag.HandleTurn(ctx, "t1", "u1", "spent 10"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}

	gen.mu.Lock()
	gen.jsonQueue = []string{`{"action":"cancel"}`}
	gen.text = "Okay, dropped it."
	gen.mu.Unlock()

	if _, err := ag.HandleTurn(ctx, "t1", "u1", "never mind, forget it"); err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if len(led.inserted) != 0 {
		t.Error("cancel must not insert a record")
	}
	st, _ := checkpoints.Load(ctx, "t1")
	if st.Awaiting != "" || st.Draft != nil || st.PendingFields != nil {
		t.Error("cancel must clear draft, pending and awaiting")
	}
}

func TestHandleTurnNewLogKeepsDraft(t *testing.T) {
	gen := &stubGenerator{
		jsonQueue: []string{
			`{"intent":"log_expense"}`,
			`{"amount":10}`,
		},
		text: "What was it for?",
	}
	led := &mockLedger{}
	ag, checkpoints := newTestAgent(t, gen, led, &mockMemory{})
	ctx := context.Background()

	if _, err := ag.HandleTurn(ctx, "t1", "u1", "spent 10"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}

	gen.mu.Lock()
	gen.jsonQueue = []string{`{"action":"new_log","candidate":{"item":"taxi","amount":30}}`}
	gen.text = "Saved the taxi. Still need the item for the 10 yuan."
	gen.mu.Unlock()

	if _, err := ag.HandleTurn(ctx, "t1", "u1", "also a taxi for 30"); err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if len(led.inserted) != 1 || led.inserted[0].Item != "taxi" {
		t.Fatalf("side record not inserted: %+v", led.inserted)
	}
	st, _ := checkpoints.Load(ctx, "t1")
	if st.Awaiting != conversation.AwaitingFill || st.Draft == nil {
		t.Error("new_log must leave the outstanding draft untouched")
	}
}

func TestHandleTurnCancelThenNew(t *testing.T) {
	gen := &stubGenerator{
		jsonQueue: []string{
			`{"intent":"log_expense"}`,
			`{"amount":10}`,
		},
		text: "What was it for?",
	}
	led := &mockLedger{}
	ag, checkpoints := newTestAgent(t, gen, led, &mockMemory{})
	ctx := context.Background()

	if _, err := ag.HandleTurn(ctx, "t1", "u1", "spent 10"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}

	gen.mu.Lock()
	gen.jsonQueue = []string{`{"action":"cancel_then_new","candidate":{"item":"taxi","amount":30}}`}
	gen.text = "Dropped the old one and saved the taxi."
	gen.mu.Unlock()

	if _, err := ag.HandleTurn(ctx, "t1", "u1", "forget that, it was a taxi for 30"); err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if len(led.inserted) != 1 {
		t.Fatalf("inserted %d records, want the replacement only", len(led.inserted))
	}
	if led.inserted[0].Item != "taxi" || led.inserted[0].AmountMinor != 3000 {
		t.Errorf("replacement record = %+v", led.inserted[0])
	}
	st, _ := checkpoints.Load(ctx, "t1")
	if st.Awaiting != "" || st.Draft != nil || st.PendingFields != nil {
		t.Error("cancel_then_new must drop the old draft and clear the wait state")
	}
}

func TestHandleTurnUnrelatedKeepsDraftWaiting(t *testing.T) {
	gen := &stubGenerator{
		jsonQueue: []string{
			`{"intent":"log_expense"}`,
			`{"amount":10}`,
		},
		text: "What was it for?",
	}
	led := &mockLedger{}
	ag, checkpoints := newTestAgent(t, gen, led, &mockMemory{})
	ctx := context.Background()

	if _, err := ag.HandleTurn(ctx, "t1", "u1", "spent 10"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}

	gen.mu.Lock()
	gen.jsonQueue = []string{`{"action":"unrelated"}`}
	gen.text = "Still need the item for the 10 yuan."
	gen.mu.Unlock()

	if _, err := ag.HandleTurn(ctx, "t1", "u1", "what a sunny day"); err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if len(led.inserted) != 0 {
		t.Error("an unrelated turn must not insert anything")
	}
	st, _ := checkpoints.Load(ctx, "t1")
	if st.Awaiting != conversation.AwaitingFill || st.Draft == nil {
		t.Error("an unrelated turn must leave the draft waiting")
	}
	if len(st.PendingFields) != 1 || st.PendingFields[0] != "item" {
		t.Errorf("pending = %v, want [item]", st.PendingFields)
	}
}

func TestHandleTurnNewLogIncompleteSkipped(t *testing.T) {
	gen := &stubGenerator{
		jsonQueue: []string{
			`{"intent":"log_expense"}`,
			`{"amount":10}`,
		},
		text: "What was it for?",
	}
	led := &mockLedger{}
	ag, checkpoints := newTestAgent(t, gen, led, &mockMemory{})
	ctx := context.Background()

	if _, err := ag.HandleTurn(ctx, "t1", "u1", "spent 10"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}

	gen.mu.Lock()
	gen.jsonQueue = []string{`{"action":"new_log","candidate":{"item":"taxi"}}`}
	gen.text = "I could not record the taxi yet, how much was it?"
	gen.mu.Unlock()

	if _, err := ag.HandleTurn(ctx, "t1", "u1", "oh and also a taxi"); err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}
	if len(led.inserted) != 0 {
		t.Error("an incomplete side candidate must not be persisted")
	}
	st, _ := checkpoints.Load(ctx, "t1")
	if st.Awaiting != conversation.AwaitingFill || st.Draft == nil {
		t.Error("a skipped side write must leave the outstanding draft waiting")
	}
	if st.DBResult != nil {
		t.Error("finalizer must clear the skipped write outcome after surfacing it")
	}
	var skipped bool
	for _, m := range st.Messages {
		if m.Role == conversation.RoleAudit && strings.Contains(m.Text, "write skipped") {
			skipped = true
		}
	}
	if !skipped {
		t.Error("skipped side write should be recorded in the audit trail")
	}
}

func TestHandleTurnQueryNormalizesBounds(t *testing.T) {
	gen := &stubGenerator{
		jsonQueue: []string{
			`{"intent":"query_summary"}`,
			`{"metric":"sum","time_scope":"that week","start_iso":"2026-08-20","end_iso":"2026-08-10"}`,
		},
		text: "You spent nothing then.",
	}
	led := &mockLedger{}
	ag, checkpoints := newTestAgent(t, gen, led, &mockMemory{})

	reply, err := ag.HandleTurn(context.Background(), "t1", "u1", "how much that week?")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if reply != "You spent nothing then." {
		t.Errorf("reply = %q", reply)
	}
	if led.lastPlan == nil {
		t.Fatal("ledger was not queried")
	}
	if led.lastPlan.StartISO != "2026-08-10" || led.lastPlan.EndISO != "2026-08-20" {
		t.Errorf("bounds not swapped: [%s, %s]", led.lastPlan.StartISO, led.lastPlan.EndISO)
	}

	st, _ := checkpoints.Load(context.Background(), "t1")
	if st.QueryPlan != nil || st.QueryResult != nil {
		t.Error("finalizer must clear query plan and result")
	}
}

func TestHandleTurnQueryLedgerFailure(t *testing.T) {
	gen := &stubGenerator{
		jsonQueue: []string{
			`{"intent":"query_summary"}`,
			`{"metric":"sum"}`,
		},
		text: "Sorry, I could not run that query.",
	}
	led := &mockLedger{aggErr: errors.New("connection refused")}
	ag, _ := newTestAgent(t, gen, led, &mockMemory{})

	reply, err := ag.HandleTurn(context.Background(), "t1", "u1", "total this month?")
	if err != nil {
		t.Fatalf("a failed query must not fail the turn: %v", err)
	}
	if reply != "Sorry, I could not run that query." {
		t.Errorf("reply = %q", reply)
	}
}

func TestHandleTurnRelatedChatSearchesMemory(t *testing.T) {
	gen := &stubGenerator{
		jsonQueue: []string{`{"intent":"related_chat"}`},
		toolsText: "You usually grab coffee in the mornings.",
	}
	mem := &mockMemory{snippets: []memory.Snippet{{Content: "user buys coffee most mornings", Score: 0.9}}}
	ag, _ := newTestAgent(t, gen, &mockLedger{}, mem)

	reply, err := ag.HandleTurn(context.Background(), "t1", "u1", "do I drink too much coffee?")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if mem.searchCalls == 0 {
		t.Error("related chat must search memory before answering")
	}
	if gen.toolsCalls != 1 {
		t.Errorf("toolsCalls = %d, want 1", gen.toolsCalls)
	}
	if reply != "You usually grab coffee in the mornings." {
		t.Errorf("reply = %q", reply)
	}
}

func TestHandleTurnGenerationFailureFallback(t *testing.T) {
	gen := &stubGenerator{
		jsonQueue: []string{`{"intent":"other"}`},
		textErr:   errors.New("model unavailable"),
	}
	ag, _ := newTestAgent(t, gen, &mockLedger{}, &mockMemory{})

	reply, err := ag.HandleTurn(context.Background(), "t1", "u1", "what is the weather?")
	if err != nil {
		t.Fatalf("a generation failure must not fail the turn: %v", err)
	}
	if reply != fallbackMessage {
		t.Errorf("reply = %q, want the fixed fallback", reply)
	}
}

func TestHandleTurnInsertFailureReported(t *testing.T) {
	gen := &stubGenerator{
		jsonQueue: []string{
			`{"intent":"log_expense"}`,
			`{"item":"coffee","amount":28}`,
		},
		text: "Sorry, that was not saved.",
	}
	led := &mockLedger{insertErr: errors.New("disk full")}
	ag, _ := newTestAgent(t, gen, led, &mockMemory{})

	reply, err := ag.HandleTurn(context.Background(), "t1", "u1", "coffee 28")
	if err != nil {
		t.Fatalf("a failed insert must not fail the turn: %v", err)
	}
	if reply != "Sorry, that was not saved." {
		t.Errorf("reply = %q", reply)
	}
}
