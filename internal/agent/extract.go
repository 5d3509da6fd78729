package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/expense-agent/internal/conversation"
	"github.com/dvloznov/expense-agent/internal/domain"
	"github.com/dvloznov/expense-agent/internal/logger"
)

// extractCandidate asks the model for a best-effort transaction
// candidate from the latest utterance alone.
func (a *Agent) extractCandidate(ctx context.Context, text string) (*domain.TransactionCandidate, error) {
	var cand domain.TransactionCandidate
	msgs := []conversation.Message{{Role: conversation.RoleUser, Text: text}}
	if err := a.gen.GenerateJSON(ctx, extractPrompt, msgs, candidateSchema, &cand); err != nil {
		return nil, fmt.Errorf("extractCandidate: %w", err)
	}
	// The extractor may not invent amounts; drop anything non-positive.
	if cand.Amount != nil && *cand.Amount <= 0 {
		cand.Amount = nil
	}
	return &cand, nil
}

// runLogExpense extracts a candidate from the turn and validates it.
func (a *Agent) runLogExpense(ctx context.Context, state *conversation.ThreadState, text string, now time.Time) {
	cand, err := a.extractCandidate(ctx, text)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("slot extraction failed")
		a.audit(ctx, state, "extraction failed: "+err.Error(), now)
		return
	}
	a.validateCandidate(ctx, state, cand, text, now)
}

// validateCandidate normalizes a candidate and either persists it or
// parks it as a draft awaiting the missing fields. Runs after fresh
// extraction and again after a successful fill decision.
func (a *Agent) validateCandidate(ctx context.Context, state *conversation.ThreadState, cand *domain.TransactionCandidate, sourceMessage string, now time.Time) {
	draft := buildDraft(cand, sourceMessage, now)
	missing := missingFields(cand)
	if len(missing) > 0 {
		state.Awaiting = conversation.AwaitingFill
		state.Draft = draft
		state.PendingFields = missing
		state.Parsed = nil
		state.Validated = false
		a.audit(ctx, state, "awaiting fill, missing: "+strings.Join(missing, ", "), now)
		return
	}
	a.persistDraft(ctx, state, draft, now)
}

// persistDraft converts a complete draft to a record and inserts it,
// recording the outcome in db_result. Storage failures are caught here
// and never raised past this boundary.
func (a *Agent) persistDraft(ctx context.Context, state *conversation.ThreadState, draft *domain.Draft, now time.Time) {
	record, err := draftToRecord(draft)
	if err != nil {
		state.DBResult = &domain.DBResult{Status: domain.DBError, Error: err.Error()}
		a.audit(ctx, state, "record normalization failed: "+err.Error(), now)
		return
	}
	state.Parsed = record
	state.Validated = true
	state.ClearDraft()

	rowID, err := a.ledger.Insert(ctx, state.UserID, record)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("ledger insert failed")
		state.DBResult = &domain.DBResult{Status: domain.DBError, Error: err.Error()}
		a.audit(ctx, state, "ledger insert failed: "+err.Error(), now)
		return
	}
	state.DBResult = &domain.DBResult{Status: domain.DBInserted, RowID: rowID}
	a.audit(ctx, state, fmt.Sprintf("ledger insert ok, row %s: %s %d %s", rowID, record.Item, record.AmountMinor, record.Currency), now)
}
