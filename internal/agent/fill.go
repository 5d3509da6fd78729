package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/expense-agent/internal/conversation"
	"github.com/dvloznov/expense-agent/internal/domain"
	"github.com/dvloznov/expense-agent/internal/logger"
)

// fillAction is the five-way classification of a turn that arrives
// while a draft is outstanding.
type fillAction string

const (
	actionFill          fillAction = "fill"
	actionNewLog        fillAction = "new_log"
	actionCancel        fillAction = "cancel"
	actionCancelThenNew fillAction = "cancel_then_new"
	actionUnrelated     fillAction = "unrelated"
)

type fillDecision struct {
	Action    fillAction                   `json:"action"`
	Candidate *domain.TransactionCandidate `json:"candidate"`
}

// runFill handles a turn while awaiting=fill: asks the model to relate
// the turn to the outstanding draft, then dispatches one handler per
// action. A failed decision call degrades to unrelated so the draft is
// never silently lost.
func (a *Agent) runFill(ctx context.Context, state *conversation.ThreadState, text string, now time.Time) {
	decision, err := a.decideFill(ctx, state)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("fill decision failed")
		a.audit(ctx, state, "fill decision failed: "+err.Error(), now)
		return
	}
	a.audit(ctx, state, "fill decision: "+string(decision.Action), now)

	switch decision.Action {
	case actionFill:
		a.fillDraft(ctx, state, decision.Candidate, text, now)
	case actionNewLog:
		a.newLogBesideDraft(ctx, state, decision.Candidate, text, now)
	case actionCancel:
		state.ClearDraft()
		a.audit(ctx, state, "draft cancelled", now)
	case actionCancelThenNew:
		state.ClearDraft()
		a.audit(ctx, state, "draft cancelled, replacement follows", now)
		if decision.Candidate != nil {
			a.validateCandidate(ctx, state, decision.Candidate, text, now)
		}
	case actionUnrelated:
		// No state change besides the audit entry above.
	default:
		a.audit(ctx, state, fmt.Sprintf("fill decision returned unknown action %q", decision.Action), now)
	}
}

// decideFill shows the model the recent turns plus the outstanding
// draft and missing fields, and gets back an action and a re-extracted
// candidate.
func (a *Agent) decideFill(ctx context.Context, state *conversation.ThreadState) (*fillDecision, error) {
	draftJSON, err := json.Marshal(state.Draft)
	if err != nil {
		return nil, fmt.Errorf("decideFill: encode draft: %w", err)
	}
	pending := strings.Join(state.PendingFields, ", ")

	msgs := a.assembleContext(state)
	msgs = append(msgs, conversation.Message{
		Role: conversation.RoleSystem,
		Text: fmt.Sprintf("Pending draft: %s\nMissing fields: %s", draftJSON, pending),
	})

	var decision fillDecision
	if err := a.gen.GenerateJSON(ctx, fillPrompt, msgs, fillSchema, &decision); err != nil {
		return nil, fmt.Errorf("decideFill: %w", err)
	}
	return &decision, nil
}

// fillDraft merges the re-extracted candidate over the outstanding
// draft and re-validates. Fields the model resolved win; anything it
// left blank is kept from the draft, including its time cue.
func (a *Agent) fillDraft(ctx context.Context, state *conversation.ThreadState, cand *domain.TransactionCandidate, text string, now time.Time) {
	if cand == nil {
		cand = &domain.TransactionCandidate{}
	}
	old := state.Draft
	merged := buildDraft(cand, text, now)
	if old != nil {
		if merged.Item == "" {
			merged.Item = old.Item
		}
		if merged.Amount <= 0 {
			merged.Amount = old.Amount
		}
		if strings.TrimSpace(cand.Currency) == "" && old.Currency != "" {
			merged.Currency = old.Currency
		}
		if cand.OccurredAtISO == nil && cand.OccurredAtText == nil {
			merged.OccurredAt = old.OccurredAt
		}
		if merged.Category == "" {
			merged.Category = old.Category
		}
		if merged.Merchant == "" {
			merged.Merchant = old.Merchant
		}
		if merged.Note == "" {
			merged.Note = old.Note
		}
		if old.SourceMessage != "" {
			merged.SourceMessage = old.SourceMessage + "\n" + text
		}
	}

	var missing []string
	if merged.Item == "" {
		missing = append(missing, "item")
	}
	if merged.Amount <= 0 {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		state.Awaiting = conversation.AwaitingFill
		state.Draft = merged
		state.PendingFields = missing
		state.Parsed = nil
		state.Validated = false
		a.audit(ctx, state, "still awaiting fill, missing: "+strings.Join(missing, ", "), now)
		return
	}
	a.persistDraft(ctx, state, merged, now)
}

// newLogBesideDraft validates a second, unrelated candidate without
// touching the outstanding draft. A complete candidate is persisted
// immediately; an incomplete one cannot be parked because only one
// draft may wait at a time, so the write is reported as skipped and the
// user restates it later.
func (a *Agent) newLogBesideDraft(ctx context.Context, state *conversation.ThreadState, cand *domain.TransactionCandidate, text string, now time.Time) {
	if cand == nil {
		state.DBResult = &domain.DBResult{Status: domain.DBSkipped, Error: "no transaction found in the message"}
		a.audit(ctx, state, "new_log with no candidate, write skipped", now)
		return
	}
	if missing := missingFields(cand); len(missing) > 0 {
		state.DBResult = &domain.DBResult{Status: domain.DBSkipped, Error: "missing " + strings.Join(missing, ", ")}
		a.audit(ctx, state, "new_log candidate incomplete, write skipped, missing: "+strings.Join(missing, ", "), now)
		return
	}

	// persistDraft clears the wait state on success; the outstanding
	// draft must survive a side insert, so restore it afterwards.
	oldDraft, oldPending, oldAwaiting := state.Draft, state.PendingFields, state.Awaiting
	a.persistDraft(ctx, state, buildDraft(cand, text, now), now)
	state.Draft, state.PendingFields, state.Awaiting = oldDraft, oldPending, oldAwaiting
}
