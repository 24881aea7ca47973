package llm

import "context"

// Role identifies who contributed a turn.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool"
)

// Turn is one entry of conversation history. Exactly one of Text, Call or
// Result is set.
type Turn struct {
	Role   Role        `json:"role"`
	Text   string      `json:"text,omitempty"`
	Call   *ToolCall   `json:"call,omitempty"`
	Result *ToolResult `json:"result,omitempty"`
}

// ToolCall is a function call requested by the model. Args holds plain
// values only (see Normalize).
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResult is the outcome of a ToolCall fed back to the model.
type ToolResult struct {
	CallID  string `json:"call_id,omitempty"`
	Name    string `json:"name"`
	Content any    `json:"content"`
}

// ToolDef describes a callable tool to the model.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Part is one piece of a model reply.
type Part struct {
	Text string
	Call *ToolCall
}

// Response is the model's reply to one Generate call.
type Response struct {
	Parts []Part
}

// GenerationConfig holds sampling parameters. Nil fields use provider defaults.
type GenerationConfig struct {
	Temperature     *float32
	TopP            *float32
	TopK            *float32
	MaxOutputTokens int32
}

// Client is the interface for LLM interactions.
type Client interface {
	Generate(ctx context.Context, turns []Turn, tools []ToolDef, gen *GenerationConfig) (*Response, error)
}

// Helper constructors

func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

func AssistantText(text string) Turn {
	return Turn{Role: RoleAssistant, Text: text}
}

func CallTurn(call ToolCall) Turn {
	return Turn{Role: RoleAssistant, Call: &call}
}

func ResultTurn(call ToolCall, content any) Turn {
	return Turn{Role: RoleToolResult, Result: &ToolResult{CallID: call.ID, Name: call.Name, Content: content}}
}

// Float32 returns a pointer to v.
func Float32(v float32) *float32 { return &v }
