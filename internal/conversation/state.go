package conversation

import (
	"time"

	"github.com/dvloznov/expense-agent/internal/domain"
)

// Intent is the coarse classification of a fresh user turn.
type Intent string

const (
	IntentLogExpense   Intent = "log_expense"
	IntentQuerySummary Intent = "query_summary"
	IntentRelatedChat  Intent = "related_chat"
	IntentOther        Intent = "other"
)

// Awaiting marks what, if anything, the thread is waiting on. The only
// value is "fill": a draft is outstanding and the next turn must go
// through fill negotiation first.
type Awaiting string

const AwaitingFill Awaiting = "fill"

// ThreadState is the full per-conversation working state. It is owned
// by exactly one thread, loaded at the start of a turn, transformed by
// the pipeline, and saved at the end (load → transform → save).
type ThreadState struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`

	// Messages is append-only; entries are never reordered or deleted.
	Messages []Message `json:"messages"`

	Intent        Intent                    `json:"intent,omitempty"`
	Awaiting      Awaiting                  `json:"awaiting,omitempty"`
	Draft         *domain.Draft             `json:"draft,omitempty"`
	PendingFields []string                  `json:"pending_fields,omitempty"`
	Parsed        *domain.TransactionRecord `json:"parsed,omitempty"`
	Validated     bool                      `json:"validated,omitempty"`

	// Ephemeral per-turn outcomes, cleared by the finalizer after
	// being surfaced once.
	DBResult    *domain.DBResult    `json:"db_result,omitempty"`
	QueryPlan   *domain.QueryPlan   `json:"query_plan,omitempty"`
	QueryResult *domain.QueryResult `json:"query_result,omitempty"`

	// RunningSummary is an optional pinned digest of older history,
	// injected ahead of the window by the assembler.
	RunningSummary string `json:"running_summary,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// NewThreadState creates empty state for a fresh conversation.
func NewThreadState(threadID, userID string) *ThreadState {
	return &ThreadState{ThreadID: threadID, UserID: userID}
}

// Append adds one utterance to the history.
func (s *ThreadState) Append(role Role, text string, at time.Time) {
	s.Messages = append(s.Messages, Message{Role: role, Text: text, Time: at})
}

// ClearDraft drops the outstanding draft and its wait state.
func (s *ThreadState) ClearDraft() {
	s.Draft = nil
	s.PendingFields = nil
	s.Awaiting = ""
}

// Clone returns a deep copy so stores can hand out state without
// sharing mutable slices with the pipeline.
func (s *ThreadState) Clone() *ThreadState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Messages = append([]Message(nil), s.Messages...)
	cp.PendingFields = append([]string(nil), s.PendingFields...)
	if s.Draft != nil {
		d := *s.Draft
		cp.Draft = &d
	}
	if s.Parsed != nil {
		p := *s.Parsed
		cp.Parsed = &p
	}
	if s.DBResult != nil {
		r := *s.DBResult
		cp.DBResult = &r
	}
	if s.QueryPlan != nil {
		q := *s.QueryPlan
		q.ItemKeywords = append([]string(nil), s.QueryPlan.ItemKeywords...)
		q.Categories = append([]string(nil), s.QueryPlan.Categories...)
		q.Merchants = append([]string(nil), s.QueryPlan.Merchants...)
		cp.QueryPlan = &q
	}
	if s.QueryResult != nil {
		r := *s.QueryResult
		r.Rows = append([]domain.LedgerRow(nil), s.QueryResult.Rows...)
		if s.QueryResult.Latest != nil {
			l := *s.QueryResult.Latest
			r.Latest = &l
		}
		cp.QueryResult = &r
	}
	return &cp
}
