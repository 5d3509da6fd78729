package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/expense-agent/internal/conversation"
)

// DefaultModelName is the Gemini model used unless configured otherwise.
const DefaultModelName = "gemini-2.5-flash"

// maxToolIterations bounds the tool-use loop so a misbehaving model
// cannot spin forever.
const maxToolIterations = 4

// Gemini is the production Generator backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator. Credentials come from the
// environment (GEMINI_API_KEY or application default credentials).
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) GenerateText(ctx context.Context, system string, msgs []conversation.Message) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, toContents(msgs), &genai.GenerateContentConfig{
		SystemInstruction: systemContent(system),
	})
	if err != nil {
		return "", fmt.Errorf("Gemini.GenerateText: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Gemini.GenerateText: empty response from model")
	}
	return text, nil
}

func (g *Gemini) GenerateJSON(ctx context.Context, system string, msgs []conversation.Message, schema *genai.Schema, out any) error {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, toContents(msgs), &genai.GenerateContentConfig{
		SystemInstruction: systemContent(system),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	})
	if err != nil {
		return fmt.Errorf("Gemini.GenerateJSON: generate content: %w", err)
	}
	raw := resp.Text()
	if raw == "" {
		return fmt.Errorf("Gemini.GenerateJSON: empty response from model")
	}
	clean := cleanModelJSON(raw)
	if err := json.Unmarshal([]byte(clean), out); err != nil {
		return fmt.Errorf("Gemini.GenerateJSON: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	return nil
}

func (g *Gemini) GenerateWithTools(ctx context.Context, system string, msgs []conversation.Message, tools []Tool) (string, error) {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
		byName[t.Name] = t
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: systemContent(system),
		Tools:             []*genai.Tool{{FunctionDeclarations: decls}},
	}

	contents := toContents(msgs)
	for i := 0; i < maxToolIterations; i++ {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			return "", fmt.Errorf("Gemini.GenerateWithTools: generate content: %w", err)
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			text := resp.Text()
			if text == "" {
				return "", fmt.Errorf("Gemini.GenerateWithTools: empty response from model")
			}
			return text, nil
		}

		// Echo the model's turn, then answer every call.
		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			contents = append(contents, resp.Candidates[0].Content)
		}
		var parts []*genai.Part
		for _, call := range calls {
			tool, ok := byName[call.Name]
			output := ""
			if !ok {
				output = fmt.Sprintf("unknown tool %q", call.Name)
			} else if out, err := tool.Execute(ctx, call.Args); err != nil {
				output = fmt.Sprintf("tool error: %v", err)
			} else {
				output = out
			}
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     call.Name,
					Response: map[string]any{"output": output},
				},
			})
		}
		contents = append(contents, &genai.Content{Role: "user", Parts: parts})
	}
	return "", fmt.Errorf("Gemini.GenerateWithTools: no final answer after %d tool iterations", maxToolIterations)
}

func systemContent(system string) *genai.Content {
	if system == "" {
		return nil
	}
	return &genai.Content{Parts: []*genai.Part{{Text: system}}}
}

// toContents maps conversation messages onto the two roles the API
// accepts. System and audit entries travel as annotated user text so
// the model still sees them in order.
func toContents(msgs []conversation.Message) []*genai.Content {
	var contents []*genai.Content
	for _, m := range msgs {
		role := "user"
		text := m.Text
		switch m.Role {
		case conversation.RoleAssistant:
			role = "model"
		case conversation.RoleSystem:
			text = "[context] " + text
		case conversation.RoleAudit:
			text = "[internal] " + text
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: text}},
		})
	}
	return contents
}

// cleanModelJSON strips Markdown fences and surrounding junk when the
// model ignores the strict-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only the outermost JSON value when junk surrounds it. The
	// earlier opening bracket decides whether it is an object or array.
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	open, closing := "{", "}"
	if objStart == -1 || (arrStart != -1 && arrStart < objStart) {
		open, closing = "[", "]"
	}
	if start := strings.Index(s, open); start != -1 {
		if end := strings.LastIndex(s, closing); end > start {
			return strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
