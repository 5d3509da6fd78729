package conversation

import (
	"unicode/utf8"
)

// WindowStrategy selects how the recent-history window is cut.
type WindowStrategy string

const (
	// WindowTokenBudget trims from the tail until the window fits an
	// approximate token budget.
	WindowTokenBudget WindowStrategy = "token_budget"
	// WindowTurns keeps the last k conversational turns.
	WindowTurns WindowStrategy = "turns"
)

// SummaryProvider supplies an optional pinned summary of older history.
type SummaryProvider func(*ThreadState) string

// MemoryRetriever supplies up to k retrieved-memory snippets for the
// given query text.
type MemoryRetriever func(query string, k int) []string

// AssembleOptions tunes one context assembly. The zero value is usable;
// defaults are applied by Assemble.
type AssembleOptions struct {
	Budget        int // total approximate token budget, default 4000
	Strategy      WindowStrategy
	WindowTurns   int // turns kept under WindowTurns, default 6
	IncludeSystem bool

	Summary          SummaryProvider
	SummarySoftLimit int // soft token budget for the summary, default 300

	Retriever MemoryRetriever
	RetrieveK int // snippets fetched, default 3

	MinWindowTokens int // floor reserved for the window, default 800
}

const (
	defaultBudget          = 4000
	defaultWindowTurns     = 6
	defaultSummaryLimit    = 300
	defaultRetrieveK       = 3
	defaultMinWindowTokens = 800
	minShrunkWindowTokens  = 200
	maxDegradeAttempts     = 10
)

func (o AssembleOptions) withDefaults() AssembleOptions {
	if o.Budget <= 0 {
		o.Budget = defaultBudget
	}
	if o.Strategy == "" {
		o.Strategy = WindowTokenBudget
	}
	if o.WindowTurns <= 0 {
		o.WindowTurns = defaultWindowTurns
	}
	if o.SummarySoftLimit <= 0 {
		o.SummarySoftLimit = defaultSummaryLimit
	}
	if o.RetrieveK <= 0 {
		o.RetrieveK = defaultRetrieveK
	}
	if o.MinWindowTokens <= 0 {
		o.MinWindowTokens = defaultMinWindowTokens
	}
	return o
}

// EstimateTokens approximates the token cost of a message list. Close
// enough for budget control: ~4 characters per token plus a small
// per-message overhead.
func EstimateTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += 4 + utf8.RuneCountInString(m.Text)/4
	}
	return total
}

// Assemble builds the bounded message list fed to a model step. It
// never mutates state. Pinned content (summary, then retrieved-memory
// snippets) goes ahead of the recent-history window. When the result
// exceeds the budget it degrades in order: drop the most recently
// added memory snippet, truncate the summary, shrink the window. The
// loop is bounded; the final list is best effort, never an error, and
// never empty while history exists.
func Assemble(state *ThreadState, opts AssembleOptions) []Message {
	opts = opts.withDefaults()
	history := state.Messages

	var pinned []Message
	summaryIdx := -1
	if opts.Summary != nil {
		if text := opts.Summary(state); text != "" {
			summaryIdx = len(pinned)
			pinned = append(pinned, Message{Role: RoleSystem, Text: text})
		}
	}
	if opts.Retriever != nil {
		if query := LastUserText(history); query != "" {
			for _, snippet := range opts.Retriever(query, opts.RetrieveK) {
				if snippet == "" {
					continue
				}
				pinned = append(pinned, MemorySnippet(snippet))
			}
		}
	}

	windowBudget := opts.Budget - EstimateTokens(pinned)
	if windowBudget < opts.MinWindowTokens {
		windowBudget = opts.MinWindowTokens
	}

	turns := opts.WindowTurns
	var window []Message
	switch opts.Strategy {
	case WindowTurns:
		window = LastKTurns(history, turns, opts.IncludeSystem)
	default:
		window = trimToTokenBudget(history, windowBudget, opts.IncludeSystem)
	}

	ctx := concat(pinned, window)
	for attempt := 0; EstimateTokens(ctx) > opts.Budget && attempt < maxDegradeAttempts; attempt++ {
		if i := lastMemoryIndex(pinned); i >= 0 {
			pinned = append(pinned[:i], pinned[i+1:]...)
			if summaryIdx > i {
				summaryIdx--
			}
			ctx = concat(pinned, window)
			continue
		}
		if summaryIdx >= 0 && shortenSummary(pinned, summaryIdx, opts.SummarySoftLimit) {
			ctx = concat(pinned, window)
			continue
		}
		switch opts.Strategy {
		case WindowTurns:
			if turns > 1 {
				turns--
				window = LastKTurns(history, turns, opts.IncludeSystem)
				ctx = concat(pinned, window)
				continue
			}
		default:
			if windowBudget > minShrunkWindowTokens {
				windowBudget = max(minShrunkWindowTokens, windowBudget*8/10)
				window = trimToTokenBudget(history, windowBudget, opts.IncludeSystem)
				ctx = concat(pinned, window)
				continue
			}
		}
		break
	}

	// Best effort: never hand back an empty context while there is
	// history to show.
	if len(ctx) == 0 && len(history) > 0 {
		ctx = []Message{history[len(history)-1]}
	}
	return ctx
}

// trimToTokenBudget keeps a suffix of history that fits the budget,
// extended backwards so the window starts on a user message when one
// is inside it. At least the final message is always kept.
func trimToTokenBudget(history []Message, budget int, includeSystem bool) []Message {
	var msgs []Message
	for _, m := range history {
		if m.Role == RoleSystem && !includeSystem {
			continue
		}
		msgs = append(msgs, m)
	}
	if len(msgs) == 0 {
		return nil
	}

	start := len(msgs)
	used := 0
	for start > 0 {
		cost := 4 + utf8.RuneCountInString(msgs[start-1].Text)/4
		if used+cost > budget && start < len(msgs) {
			break
		}
		used += cost
		start--
	}
	// Prefer a window that opens with a user utterance.
	for i := start; i < len(msgs); i++ {
		if msgs[i].Role == RoleUser {
			start = i
			break
		}
	}
	return msgs[start:]
}

func lastMemoryIndex(pinned []Message) int {
	for i := len(pinned) - 1; i >= 0; i-- {
		if isMemorySnippet(pinned[i]) {
			return i
		}
	}
	return -1
}

// shortenSummary truncates the pinned summary toward its soft token
// budget, marking the cut with an ellipsis. Returns false once the
// summary is already short enough.
func shortenSummary(pinned []Message, idx, softLimitTokens int) bool {
	text := pinned[idx].Text
	targetRunes := softLimitTokens * 3 / 2
	if targetRunes < 50 {
		targetRunes = 50
	}
	runes := []rune(text)
	if len(runes) <= targetRunes {
		return false
	}
	pinned[idx].Text = string(runes[:targetRunes]) + " …"
	return true
}

func concat(a, b []Message) []Message {
	out := make([]Message, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
