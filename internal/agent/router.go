package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/expense-agent/internal/conversation"
	"github.com/dvloznov/expense-agent/internal/logger"
)

// classifyIntent asks the model to classify the latest user message
// over the assembled recent context. Classification failures degrade
// to IntentOther; the router adds no heuristics of its own. The result
// is recorded as one audit entry.
func (a *Agent) classifyIntent(ctx context.Context, state *conversation.ThreadState, now time.Time) conversation.Intent {
	var out struct {
		Intent string `json:"intent"`
	}
	err := a.gen.GenerateJSON(ctx, intentPrompt, a.assembleContext(state), intentSchema, &out)

	intent := conversation.IntentOther
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("intent classification failed")
	} else {
		switch conversation.Intent(out.Intent) {
		case conversation.IntentLogExpense, conversation.IntentQuerySummary, conversation.IntentRelatedChat:
			intent = conversation.Intent(out.Intent)
		}
	}

	state.Intent = intent
	a.audit(ctx, state, fmt.Sprintf("intent classified as %s", intent), now)
	return intent
}
