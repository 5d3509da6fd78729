// Package agent implements the turn-processing pipeline of the
// bookkeeping assistant: intent routing, slot extraction and
// validation, fill negotiation over incomplete drafts, query planning,
// and response finalization.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/expense-agent/internal/conversation"
	"github.com/dvloznov/expense-agent/internal/logger"
)

// Options wires an Agent's collaborators. Generator, Ledger, Memory
// and Checkpoints are required; the rest have sensible defaults.
type Options struct {
	Generator   Generator
	Ledger      Ledger
	Memory      Memory
	Checkpoints Checkpoints

	Transcript TranscriptWriter
	Clock      Clock
	Assemble   conversation.AssembleOptions
}

// Agent processes user turns. Turns on the same thread run strictly
// sequentially; distinct threads run independently.
type Agent struct {
	gen         Generator
	ledger      Ledger
	memory      Memory
	checkpoints Checkpoints
	transcript  TranscriptWriter
	clock       Clock
	assemble    conversation.AssembleOptions

	threads sync.Map // thread ID -> *sync.Mutex
}

// New validates the options and builds an Agent.
func New(opts Options) (*Agent, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("New: Generator is required")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("New: Ledger is required")
	}
	if opts.Memory == nil {
		return nil, fmt.Errorf("New: Memory is required")
	}
	if opts.Checkpoints == nil {
		return nil, fmt.Errorf("New: Checkpoints is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Agent{
		gen:         opts.Generator,
		ledger:      opts.Ledger,
		memory:      opts.Memory,
		checkpoints: opts.Checkpoints,
		transcript:  opts.Transcript,
		clock:       clock,
		assemble:    opts.Assemble,
	}, nil
}

// HandleTurn runs one user turn through the full pipeline and returns
// the single user-facing reply. State is loaded from the checkpoint
// store at the start and saved back at the end, so a thread survives
// process restarts.
func (a *Agent) HandleTurn(ctx context.Context, threadID, userID, text string) (string, error) {
	mu := a.threadLock(threadID)
	mu.Lock()
	defer mu.Unlock()

	log := logger.FromContext(ctx).With().
		Str("thread_id", threadID).
		Str("user_id", userID).
		Logger()
	ctx = logger.WithContext(ctx, log)

	state, err := a.checkpoints.Load(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("HandleTurn: load checkpoint: %w", err)
	}
	if state == nil {
		state = conversation.NewThreadState(threadID, userID)
	}

	now := a.clock()
	a.record(ctx, state, conversation.RoleUser, text, now)

	if state.Awaiting == conversation.AwaitingFill {
		a.runFill(ctx, state, text, now)
	} else {
		intent := a.classifyIntent(ctx, state, now)
		log.Debug().Str("intent", string(intent)).Msg("turn routed")
		switch intent {
		case conversation.IntentLogExpense:
			a.runLogExpense(ctx, state, text, now)
		case conversation.IntentQuerySummary:
			a.runQuery(ctx, state, now)
		}
		// related_chat and other go straight to the finalizer.
	}

	reply := a.finalize(ctx, state)
	a.record(ctx, state, conversation.RoleAssistant, reply, a.clock())

	state.UpdatedAt = a.clock()
	if err := a.checkpoints.Save(ctx, threadID, state); err != nil {
		return "", fmt.Errorf("HandleTurn: save checkpoint: %w", err)
	}
	return reply, nil
}

// record appends to the in-state history and mirrors the utterance to
// the transcript log. Transcript failures are logged, not fatal.
func (a *Agent) record(ctx context.Context, state *conversation.ThreadState, role conversation.Role, text string, at time.Time) {
	state.Append(role, text, at)
	if a.transcript == nil {
		return
	}
	if err := a.transcript.Append(state.ThreadID, role, text, at); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("transcript append failed")
	}
}

// audit appends an internal note to the history. Audit entries feed
// later model context but are never shown to the user.
func (a *Agent) audit(ctx context.Context, state *conversation.ThreadState, text string, at time.Time) {
	a.record(ctx, state, conversation.RoleAudit, text, at)
}

func (a *Agent) threadLock(threadID string) *sync.Mutex {
	mu, _ := a.threads.LoadOrStore(threadID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// assembleContext builds the bounded message list for a model step.
func (a *Agent) assembleContext(state *conversation.ThreadState) []conversation.Message {
	opts := a.assemble
	if opts.Summary == nil {
		opts.Summary = func(s *conversation.ThreadState) string { return s.RunningSummary }
	}
	return conversation.Assemble(state, opts)
}
