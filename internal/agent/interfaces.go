package agent

import (
	"time"

	"github.com/dvloznov/expense-agent/internal/checkpoint"
	"github.com/dvloznov/expense-agent/internal/conversation"
	"github.com/dvloznov/expense-agent/internal/ledger"
	"github.com/dvloznov/expense-agent/internal/llm"
	"github.com/dvloznov/expense-agent/internal/memory"
)

// Collaborator contracts the pipeline depends on, re-exported from
// their home packages so wiring reads in one place.
type (
	Generator   = llm.Generator
	Ledger      = ledger.Store
	Memory      = memory.Store
	Checkpoints = checkpoint.Store
)

// TranscriptWriter receives every utterance as it is appended to a
// thread. Optional; nil disables transcript logging.
type TranscriptWriter interface {
	Append(threadID string, role conversation.Role, text string, at time.Time) error
}

// Clock supplies the current moment; tests pin it.
type Clock func() time.Time
