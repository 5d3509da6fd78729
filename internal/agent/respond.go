package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/expense-agent/internal/conversation"
	"github.com/dvloznov/expense-agent/internal/llm"
	"github.com/dvloznov/expense-agent/internal/logger"
	"github.com/dvloznov/expense-agent/internal/memory"
)

// responseKind orders what the finalizer surfaces when several
// outcomes are present at once.
type responseKind int

const (
	kindQueryResult responseKind = iota
	kindDBResult
	kindAwaitingFill
	kindRelatedChat
	kindOther
	kindFallback
)

// classifyResponse picks the highest-priority outcome to surface.
func classifyResponse(state *conversation.ThreadState) responseKind {
	switch {
	case state.QueryResult != nil:
		return kindQueryResult
	case state.DBResult != nil:
		return kindDBResult
	case state.Awaiting == conversation.AwaitingFill:
		return kindAwaitingFill
	case state.Intent == conversation.IntentRelatedChat:
		return kindRelatedChat
	case state.Intent == conversation.IntentOther:
		return kindOther
	default:
		return kindFallback
	}
}

// directives tell the wording model what to convey for each outcome.
var directives = map[responseKind]string{
	kindQueryResult:  "Report the query result to the user. On error status, apologize briefly and say the query could not be run.",
	kindDBResult:     "Confirm the recorded transaction (item, amount, time). On error status, apologize and say it was not saved. On skipped status, say the extra entry could not be recorded yet and ask the user to restate it with the missing details.",
	kindAwaitingFill: "Ask the user for exactly the missing fields of the pending draft, mentioning what is already known.",
	kindOther:        "The message was outside bookkeeping. Briefly say what you can do: log expenses and answer questions about them.",
	kindFallback:     "Give a short confirmation or a hint about logging expenses and querying them.",
}

// finalize reduces the turn's state to exactly one user-facing message
// and clears the ephemeral outcomes so they are not re-surfaced next
// turn. A failed generation call degrades to a fixed fallback message.
func (a *Agent) finalize(ctx context.Context, state *conversation.ThreadState) string {
	kind := classifyResponse(state)

	var reply string
	var err error
	if kind == kindRelatedChat {
		reply, err = a.respondRelated(ctx, state)
	} else {
		reply, err = a.respondFromSnapshot(ctx, state, kind)
	}
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("response generation failed")
		reply = fallbackMessage
	}

	state.DBResult = nil
	state.QueryPlan = nil
	state.QueryResult = nil
	return reply
}

// respondFromSnapshot hands the model a JSON snapshot of the turn's
// outcome plus a directive and lets it word the reply.
func (a *Agent) respondFromSnapshot(ctx context.Context, state *conversation.ThreadState, kind responseKind) (string, error) {
	snapshot := map[string]any{
		"intent":         state.Intent,
		"awaiting":       state.Awaiting,
		"pending_fields": state.PendingFields,
		"draft":          state.Draft,
		"parsed":         state.Parsed,
		"db_result":      state.DBResult,
		"query_plan":     state.QueryPlan,
		"query_result":   state.QueryResult,
	}
	blob, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("respondFromSnapshot: encode snapshot: %w", err)
	}

	msgs := a.assembleContext(state)
	msgs = append(msgs, conversation.Message{
		Role: conversation.RoleSystem,
		Text: fmt.Sprintf("State snapshot: %s\nInstruction: %s", blob, directives[kind]),
	})
	reply, err := a.gen.GenerateText(ctx, respondPrompt, msgs)
	if err != nil {
		return "", fmt.Errorf("respondFromSnapshot: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// respondRelated answers money small talk retrieval-first: memory is
// always searched before the model answers, and the model keeps
// search_memory and manage_memory bound for follow-ups.
func (a *Agent) respondRelated(ctx context.Context, state *conversation.ThreadState) (string, error) {
	query := conversation.LastUserText(state.Messages)

	snippets, err := a.memory.Search(ctx, memory.UserNamespace(state.UserID), query, a.retrieveK())
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("memory search failed")
	}

	msgs := a.assembleContext(state)
	for _, s := range snippets {
		msgs = append(msgs, conversation.MemorySnippet(s.Content))
	}

	reply, err := a.gen.GenerateWithTools(ctx, relatedPrompt, msgs, a.memoryTools(state.UserID))
	if err != nil {
		return "", fmt.Errorf("respondRelated: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func (a *Agent) retrieveK() int {
	if a.assemble.RetrieveK > 0 {
		return a.assemble.RetrieveK
	}
	return 3
}

// memoryTools binds the long-term memory store to the model.
func (a *Agent) memoryTools(userID string) []llm.Tool {
	return []llm.Tool{
		{
			Name:        "search_memory",
			Description: "Search the user's long-term memory for relevant notes.",
			Parameters:  searchMemorySchema,
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				query, _ := args["query"].(string)
				snippets, err := a.memory.Search(ctx, memory.UserNamespace(userID), query, a.retrieveK())
				if err != nil {
					return "", err
				}
				if len(snippets) == 0 {
					return "no matching memories", nil
				}
				var b strings.Builder
				for _, s := range snippets {
					fmt.Fprintf(&b, "- %s\n", s.Content)
				}
				return b.String(), nil
			},
		},
		{
			Name:        "manage_memory",
			Description: "Store a durable fact the user stated about themselves or their finances.",
			Parameters:  manageMemorySchema,
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				content, _ := args["content"].(string)
				if err := a.memory.Write(ctx, memory.UserNamespace(userID), content); err != nil {
					return "", err
				}
				return "saved", nil
			},
		},
	}
}
