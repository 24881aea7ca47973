package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

// OpenAICompatClient works with any OpenAI-compatible API (Ollama, Gemini's
// OpenAI endpoint, vLLM).
type OpenAICompatClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an LLM client for an OpenAI-compatible provider.
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAICompatClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAICompatClient{
		client: &client,
		model:  model,
	}
}

func (c *OpenAICompatClient) Generate(ctx context.Context, turns []Turn, tools []ToolDef, gen *GenerationConfig) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: convertTurns(turns),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}
	if gen != nil {
		// top-k has no OpenAI equivalent
		if gen.Temperature != nil {
			params.Temperature = param.NewOpt(float64(*gen.Temperature))
		}
		if gen.TopP != nil {
			params.TopP = param.NewOpt(float64(*gen.TopP))
		}
		if gen.MaxOutputTokens > 0 {
			params.MaxTokens = param.NewOpt(int64(gen.MaxOutputTokens))
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	msg := completion.Choices[0].Message
	resp := &Response{}
	if msg.Content != "" {
		resp.Parts = append(resp.Parts, Part{Text: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		var raw map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &raw); err != nil {
			raw = map[string]any{"_raw": tc.Function.Arguments}
		}
		args, err := NormalizeArgs(raw)
		if err != nil {
			return nil, fmt.Errorf("normalizing %s args: %w", tc.Function.Name, err)
		}
		resp.Parts = append(resp.Parts, Part{Call: &ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		}})
	}
	return resp, nil
}

// convertTurns maps history onto chat messages. OpenAI requires every tool
// message to reference the id of the assistant call it answers, so calls
// without an id get a generated one that the following result reuses.
func convertTurns(turns []Turn) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	lastCallID := ""
	for _, t := range turns {
		switch {
		case t.Call != nil:
			id := t.Call.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			lastCallID = id
			assistant := openai.ChatCompletionAssistantMessageParam{
				ToolCalls: []openai.ChatCompletionMessageToolCallParam{{
					ID: id,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      t.Call.Name,
						Arguments: marshalArgs(t.Call.Args),
					},
				}},
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case t.Result != nil:
			id := t.Result.CallID
			if id == "" {
				id = lastCallID
			}
			content, err := json.Marshal(t.Result.Content)
			if err != nil {
				content = []byte(fmt.Sprintf("%q", fmt.Sprint(t.Result.Content)))
			}
			out = append(out, openai.ToolMessage(string(content), id))
		case t.Role == RoleAssistant:
			out = append(out, openai.AssistantMessage(t.Text))
		default:
			out = append(out, openai.UserMessage(t.Text))
		}
	}
	return out
}

func convertTools(tools []ToolDef) []openai.ChatCompletionToolParam {
	var out []openai.ChatCompletionToolParam
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			},
		})
	}
	return out
}

// marshalArgs renders call arguments as the JSON string OpenAI expects.
func marshalArgs(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
