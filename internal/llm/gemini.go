package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient talks to the Gemini API through the genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini client for the given model.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, turns []Turn, tools []ToolDef, gen *GenerationConfig) (*Response, error) {
	contents, err := toGeminiContents(turns)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{}
	if gen != nil {
		cfg.Temperature = gen.Temperature
		cfg.TopP = gen.TopP
		cfg.TopK = gen.TopK
		cfg.MaxOutputTokens = gen.MaxOutputTokens
	}
	if len(tools) > 0 {
		cfg.Tools = toGeminiTools(tools)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return fromGeminiResponse(resp)
}

// toGeminiContents maps history onto Gemini roles: assistant turns become
// "model", tool results travel back as "user" function responses.
func toGeminiContents(turns []Turn) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		switch {
		case t.Call != nil:
			out = append(out, &genai.Content{
				Role: "model",
				Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{
					ID:   t.Call.ID,
					Name: t.Call.Name,
					Args: t.Call.Args,
				}}},
			})
		case t.Result != nil:
			response, err := resultPayload(t.Result.Content)
			if err != nil {
				return nil, fmt.Errorf("encoding %s result: %w", t.Result.Name, err)
			}
			out = append(out, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       t.Result.CallID,
					Name:     t.Result.Name,
					Response: response,
				}}},
			})
		default:
			role := "user"
			if t.Role == RoleAssistant {
				role = "model"
			}
			out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{{Text: t.Text}}})
		}
	}
	return out, nil
}

// resultPayload wraps an arbitrary tool result into the object shape Gemini
// requires for function responses.
func resultPayload(content any) (map[string]any, error) {
	n, err := Normalize(content)
	if err != nil {
		return nil, err
	}
	return map[string]any{"content": n}, nil
}

func fromGeminiResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates returned")
	}

	out := &Response{}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		if p.FunctionCall != nil {
			args, err := NormalizeArgs(p.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("normalizing %s args: %w", p.FunctionCall.Name, err)
			}
			out.Parts = append(out.Parts, Part{Call: &ToolCall{
				ID:   p.FunctionCall.ID,
				Name: p.FunctionCall.Name,
				Args: args,
			}})
			continue
		}
		if p.Text != "" {
			out.Parts = append(out.Parts, Part{Text: p.Text})
		}
	}
	return out, nil
}

func toGeminiTools(tools []ToolDef) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGeminiSchema(t.Parameters),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGeminiSchema converts a JSON Schema map into genai.Schema.
func toGeminiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}
	if typ, ok := schema["type"].(string); ok {
		s.Type = toGeminiType(typ)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if pattern, ok := schema["pattern"].(string); ok {
		s.Pattern = pattern
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = toGeminiSchema(pm)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGeminiSchema(items)
	}
	s.Required = stringSlice(schema["required"])
	s.Enum = stringSlice(schema["enum"])
	return s
}

func toGeminiType(typ string) genai.Type {
	switch typ {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	}
	return nil
}
