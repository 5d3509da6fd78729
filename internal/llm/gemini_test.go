package llm

import (
	"testing"

	"github.com/dvloznov/expense-agent/internal/conversation"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced object", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced without language", "```\n[1,2]\n```", `[1,2]`},
		{"prose around object", `Here you go: {"a":1} hope that helps`, `{"a":1}`},
		{"array containing objects", `[{"a":1},{"b":2}]`, `[{"a":1},{"b":2}]`},
		{"prose around array", `result: [{"a":1}] done`, `[{"a":1}]`},
		{"whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestToContentsRoles(t *testing.T) {
	msgs := []conversation.Message{
		{Role: conversation.RoleSystem, Text: "summary"},
		{Role: conversation.RoleUser, Text: "hi"},
		{Role: conversation.RoleAssistant, Text: "hello"},
		{Role: conversation.RoleAudit, Text: "intent classified as other"},
	}
	contents := toContents(msgs)
	if len(contents) != 4 {
		t.Fatalf("toContents() = %d entries, want 4", len(contents))
	}
	if contents[0].Role != "user" || contents[0].Parts[0].Text != "[context] summary" {
		t.Errorf("system mapping wrong: %+v", contents[0])
	}
	if contents[1].Role != "user" || contents[1].Parts[0].Text != "hi" {
		t.Errorf("user mapping wrong: %+v", contents[1])
	}
	if contents[2].Role != "model" {
		t.Errorf("assistant role = %q, want model", contents[2].Role)
	}
	if contents[3].Parts[0].Text != "[internal] intent classified as other" {
		t.Errorf("audit mapping wrong: %+v", contents[3])
	}
}
