// Package llm wraps the Gemini API behind a small generation interface
// so the agent pipeline can be tested against stubs.
package llm

import (
	"context"

	"google.golang.org/genai"

	"github.com/dvloznov/expense-agent/internal/conversation"
)

// Tool is a callable the model may invoke during a tool-assisted
// generation. Execute returns the tool's output as plain text, which is
// fed back to the model as the function response.
type Tool struct {
	Name        string
	Description string
	Parameters  *genai.Schema
	Execute     func(ctx context.Context, args map[string]any) (string, error)
}

// Generator produces model output over assembled conversation context.
type Generator interface {
	// GenerateText returns a free-form reply.
	GenerateText(ctx context.Context, system string, msgs []conversation.Message) (string, error)
	// GenerateJSON constrains the model to the given schema and decodes
	// the reply into out.
	GenerateJSON(ctx context.Context, system string, msgs []conversation.Message, schema *genai.Schema, out any) error
	// GenerateWithTools runs a bounded tool-use loop and returns the
	// model's final text.
	GenerateWithTools(ctx context.Context, system string, msgs []conversation.Message, tools []Tool) (string, error)
}
