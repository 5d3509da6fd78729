package conversation

import (
	"strings"
	"testing"
)

func historyOfTurns(n int, text string) *ThreadState {
	st := NewThreadState("t1", "u1")
	for i := 0; i < n; i++ {
		st.Messages = append(st.Messages,
			Message{Role: RoleUser, Text: text},
			Message{Role: RoleAssistant, Text: text},
		)
	}
	return st
}

func TestAssembleFitsSmallHistory(t *testing.T) {
	st := historyOfTurns(2, "coffee 28 yuan")
	got := Assemble(st, AssembleOptions{Budget: 4000})
	if len(got) != 4 {
		t.Fatalf("Assemble() = %d messages, want all 4", len(got))
	}
}

func TestAssembleDropsMemoryFirst(t *testing.T) {
	st := historyOfTurns(1, strings.Repeat("x", 400))
	big := strings.Repeat("m", 2000)
	opts := AssembleOptions{
		Budget:          400,
		MinWindowTokens: 100,
		Retriever: func(query string, k int) []string {
			return []string{big, big, big}
		},
	}
	got := Assemble(st, opts)
	for _, m := range got {
		if isMemorySnippet(m) {
			t.Error("over-budget assembly should have dropped memory snippets first")
		}
	}
	if len(got) == 0 {
		t.Fatal("assembly must stay best-effort, never empty")
	}
}

func TestAssembleTruncatesSummary(t *testing.T) {
	st := historyOfTurns(1, "short")
	st.RunningSummary = strings.Repeat("s", 5000)
	opts := AssembleOptions{
		Budget:           300,
		SummarySoftLimit: 100,
		MinWindowTokens:  50,
		Summary:          func(s *ThreadState) string { return s.RunningSummary },
	}
	got := Assemble(st, opts)
	if len(got) == 0 {
		t.Fatal("assembly must not be empty")
	}
	summary := got[0]
	if summary.Role != RoleSystem {
		t.Fatalf("first message role = %s, want pinned system summary", summary.Role)
	}
	if !strings.HasSuffix(summary.Text, "…") {
		t.Error("truncated summary should end with an ellipsis")
	}
	if len([]rune(summary.Text)) >= 5000 {
		t.Error("summary was not truncated")
	}
}

func TestAssembleTurnsDecrement(t *testing.T) {
	st := historyOfTurns(8, strings.Repeat("y", 200))
	opts := AssembleOptions{
		Budget:      200,
		Strategy:    WindowTurns,
		WindowTurns: 8,
	}
	got := Assemble(st, opts)
	turns := Turns(got)
	if len(turns) >= 8 {
		t.Errorf("degradation should have decremented turns, still %d", len(turns))
	}
	if len(got) == 0 {
		t.Fatal("assembly must stay best-effort, never empty")
	}
}

func TestAssembleNeverMutatesState(t *testing.T) {
	st := historyOfTurns(3, "hello")
	st.RunningSummary = strings.Repeat("s", 3000)
	before := len(st.Messages)
	Assemble(st, AssembleOptions{Budget: 100, MinWindowTokens: 50})
	if len(st.Messages) != before {
		t.Error("Assemble must not mutate thread history")
	}
	if len([]rune(st.RunningSummary)) != 3000 {
		t.Error("Assemble must not mutate the running summary")
	}
}
