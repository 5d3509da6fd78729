package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/expense-agent/internal/conversation"
	"github.com/dvloznov/expense-agent/internal/domain"
	"github.com/dvloznov/expense-agent/internal/logger"
)

// runQuery plans a ledger query from the conversation, normalizes its
// date bounds, and executes it. Planning and execution failures become
// a structured error result; nothing is raised to the caller.
func (a *Agent) runQuery(ctx context.Context, state *conversation.ThreadState, now time.Time) {
	plan, err := a.planQuery(ctx, state, now)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("query planning failed")
		a.audit(ctx, state, "query planning failed: "+err.Error(), now)
		state.QueryResult = domain.FailedQuery(err)
		return
	}
	plan.NormalizeBounds()
	state.QueryPlan = plan
	a.audit(ctx, state, fmt.Sprintf("query plan: metric=%s scope=%q start=%s end=%s",
		plan.Metric, plan.TimeScope, plan.StartISO, plan.EndISO), now)

	result, err := a.ledger.Aggregate(ctx, state.UserID, plan)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("ledger query failed")
		a.audit(ctx, state, "ledger query failed: "+err.Error(), now)
		state.QueryResult = domain.FailedQuery(err)
		return
	}
	state.QueryResult = result
	a.audit(ctx, state, fmt.Sprintf("query ok: %d rows", result.TotalRows), now)
}

// planQuery asks the model for a structured plan, anchored to the
// current datetime so relative phrases resolve to concrete dates.
func (a *Agent) planQuery(ctx context.Context, state *conversation.ThreadState, now time.Time) (*domain.QueryPlan, error) {
	msgs := a.assembleContext(state)
	msgs = append(msgs, conversation.Message{
		Role: conversation.RoleSystem,
		Text: "Current datetime: " + now.Format(domain.OccurredAtLayout),
	})

	var plan domain.QueryPlan
	if err := a.gen.GenerateJSON(ctx, queryPrompt, msgs, querySchema, &plan); err != nil {
		return nil, fmt.Errorf("planQuery: %w", err)
	}
	if plan.Metric == "" {
		return nil, fmt.Errorf("planQuery: model returned no metric")
	}
	return &plan, nil
}
