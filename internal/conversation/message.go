package conversation

import (
	"strings"
	"time"
)

// Role tags who produced an utterance. Audit messages record internal
// step outcomes ("[extract] ...") for later model context; they are
// never shown to the user.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleAudit     Role = "audit"
)

// Message is one utterance in a thread's append-only history.
type Message struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	Time time.Time `json:"time,omitempty"`
}

// memoryPrefix marks retrieved-memory snippets injected by the
// assembler so the degradation loop can find and drop them.
const memoryPrefix = "[memory] "

// MemorySnippet wraps retrieved content as a pinned system message.
func MemorySnippet(content string) Message {
	return Message{Role: RoleSystem, Text: memoryPrefix + strings.TrimSpace(content)}
}

func isMemorySnippet(m Message) bool {
	return m.Role == RoleSystem && strings.HasPrefix(strings.TrimSpace(m.Text), strings.TrimSpace(memoryPrefix))
}

// Turns segments history into conversational turns. A turn starts at a
// user message and runs through every following non-user message until
// the next user message. A leading run of non-user messages forms its
// own turn.
func Turns(msgs []Message) [][]Message {
	var turns [][]Message
	var buf []Message
	for _, m := range msgs {
		if m.Role == RoleUser {
			if len(buf) > 0 {
				turns = append(turns, buf)
			}
			buf = []Message{m}
			continue
		}
		buf = append(buf, m)
	}
	if len(buf) > 0 {
		turns = append(turns, buf)
	}
	return turns
}

// LastKTurns keeps the most recent k conversational turns, flattened.
// System messages are kept ahead of the window when includeSystem is
// set, mirroring how the window is rebuilt during degradation.
func LastKTurns(msgs []Message, k int, includeSystem bool) []Message {
	var sys, rest []Message
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if includeSystem {
				sys = append(sys, m)
			}
			continue
		}
		rest = append(rest, m)
	}
	turns := Turns(rest)
	if k < len(turns) {
		turns = turns[len(turns)-k:]
	}
	out := append([]Message{}, sys...)
	for _, t := range turns {
		out = append(out, t...)
	}
	return out
}

// LastUserText returns the text of the most recent user message, or "".
func LastUserText(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Text
		}
	}
	return ""
}
