package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/michaelbrown/schoolbot/internal/apperr"
	"github.com/michaelbrown/schoolbot/internal/llm"
)

const (
	DefaultMaxTurns   = 10
	DefaultPromptPath = "prompts/system_prompt.txt"

	// FallbackResponse is returned when the model finishes without any text.
	FallbackResponse = "Sorry, I could not process your request."
)

// generation is the fixed sampling configuration for every loop invocation.
var generation = &llm.GenerationConfig{
	Temperature:     llm.Float32(0.7),
	TopP:            llm.Float32(0.8),
	TopK:            llm.Float32(40),
	MaxOutputTokens: 2048,
}

// ToolRunner executes tool calls on behalf of the loop.
type ToolRunner interface {
	Execute(ctx context.Context, name string, args map[string]any, token string) (any, error)
	ToolDefs() []llm.ToolDef
	Mutates(name string) bool
}

// Options configures an Agent. Zero values select defaults.
type Options struct {
	MaxTurns   int
	PromptPath string
	Logger     *slog.Logger
}

// Agent drives the tool-calling loop for one request at a time. It holds no
// per-request state, so one Agent serves concurrent requests.
type Agent struct {
	llm        llm.Client
	tools      ToolRunner
	summarizer *Summarizer
	maxTurns   int
	promptPath string
	logger     *slog.Logger
}

// New creates an Agent with the given LLM client and tool runner.
func New(client llm.Client, runner ToolRunner, opts Options) *Agent {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.PromptPath == "" {
		opts.PromptPath = DefaultPromptPath
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Agent{
		llm:        client,
		tools:      runner,
		summarizer: NewSummarizer(client, opts.Logger),
		maxTurns:   opts.MaxTurns,
		promptPath: opts.PromptPath,
		logger:     opts.Logger,
	}
}

// Request is one user message plus the caller's credentials.
type Request struct {
	Message string
	ChatID  *int64
	UserID  *int64
	Token   string

	// Optional hooks, called synchronously as the loop progresses.
	OnToolCall   func(call llm.ToolCall)
	OnToolResult func(call llm.ToolCall, result any)
}

// Call is one executed tool invocation. Err is set when execution failed and
// the loop stopped there.
type Call struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Result any            `json:"result,omitempty"`
	Err    string         `json:"error,omitempty"`
}

// Result is the outcome of a request. It is returned, possibly partial,
// alongside any error.
type Result struct {
	Response string
	Calls    []Call
}

// Count is the number of tool calls the model made.
func (r *Result) Count() int { return len(r.Calls) }

// APICalls returns the tool name and arguments of every call, in order.
func (r *Result) APICalls() []map[string]any {
	out := make([]map[string]any, 0, len(r.Calls))
	for _, c := range r.Calls {
		out = append(out, map[string]any{"tool": c.Tool, "args": c.Args})
	}
	return out
}

// APIResponses returns the results of the calls that completed, in order.
func (r *Result) APIResponses() []any {
	out := make([]any, 0, len(r.Calls))
	for _, c := range r.Calls {
		if c.Err == "" {
			out = append(out, c.Result)
		}
	}
	return out
}

// Chat runs the loop and, when any tool was called, replaces the answer with
// a summary of the trace. Summarization never fails the request.
func (a *Agent) Chat(ctx context.Context, req Request) (*Result, error) {
	res, err := a.Run(ctx, req)
	if err != nil {
		return res, err
	}
	if len(res.Calls) > 0 {
		confirm := a.tools.Mutates(res.Calls[0].Tool)
		res.Response = a.summarizer.Summarize(ctx, res.Calls, confirm)
	}
	return res, nil
}

// Run executes the tool-calling loop until the model replies without any
// tool call, an error occurs, or the turn limit is reached.
func (a *Agent) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}

	systemPrompt, err := loadSystemPrompt(a.promptPath)
	if err != nil {
		return res, err
	}

	history := []llm.Turn{llm.UserTurn(req.Message)}
	first := []llm.Turn{llm.UserTurn(firstPrompt(systemPrompt, req))}
	defs := a.tools.ToolDefs()

	for turn := 0; turn < a.maxTurns; turn++ {
		input := history
		if turn == 0 {
			input = first
		}

		resp, err := a.llm.Generate(ctx, input, defs, generation)
		if err != nil {
			return res, apperr.Model(fmt.Sprintf("generate (turn %d)", turn+1), err)
		}

		called := false
		var texts []string
		for _, part := range resp.Parts {
			call := part.Call
			if call == nil && part.Text != "" {
				if parsed, ok := parseEmbeddedCall(part.Text); ok {
					call = parsed
				}
			}
			if call == nil {
				if strings.TrimSpace(part.Text) != "" {
					texts = append(texts, part.Text)
				}
				continue
			}

			called = true
			history, err = a.runCall(ctx, req, *call, history, res)
			if err != nil {
				return res, err
			}
		}

		if !called {
			res.Response = FallbackResponse
			if len(texts) > 0 {
				res.Response = texts[0]
			}
			return res, nil
		}
	}

	a.logger.Warn("turn limit reached", "max_turns", a.maxTurns, "calls", res.Count())
	return res, apperr.MaxTurns(a.maxTurns)
}

// runCall records and executes one call, returning the extended history.
func (a *Agent) runCall(ctx context.Context, req Request, call llm.ToolCall, history []llm.Turn, res *Result) ([]llm.Turn, error) {
	if call.Args == nil {
		call.Args = map[string]any{}
	}
	a.logger.Info("tool call", "n", res.Count()+1, "tool", call.Name)

	res.Calls = append(res.Calls, Call{Tool: call.Name, Args: call.Args})
	history = append(history, llm.CallTurn(call))
	if req.OnToolCall != nil {
		req.OnToolCall(call)
	}

	result, err := a.tools.Execute(ctx, call.Name, call.Args, req.Token)
	last := &res.Calls[len(res.Calls)-1]
	if err != nil {
		last.Err = err.Error()
		a.logger.Error("tool failed", "tool", call.Name, "err", err)
		return history, err
	}
	last.Result = result

	if req.OnToolResult != nil {
		req.OnToolResult(call, result)
	}
	return append(history, llm.ResultTurn(call, result)), nil
}
