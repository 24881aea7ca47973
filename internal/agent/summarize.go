package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/michaelbrown/schoolbot/internal/llm"
)

// SummaryFallback is used whenever summarization fails.
const SummaryFallback = "I have completed your request. Is there anything else I can help you with?"

// maxResultChars bounds the serialized backend responses placed in the prompt.
const maxResultChars = 16000

const (
	confirmInstruction = "This was a direct request from the user. Write a short message confirming the action has been completed."
	summaryInstruction = `Write a friendly reply based on these results. The message should:
1. Confirm the action was carried out successfully
2. Summarize the important information from the results
3. Use natural, friendly language
4. Not mention technical details such as API calls`
)

// Summarizer rewrites a tool-call trace into a message for the end user.
type Summarizer struct {
	llm    llm.Client
	logger *slog.Logger
}

// NewSummarizer creates a Summarizer using the given client.
func NewSummarizer(client llm.Client, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{llm: client, logger: logger}
}

// Summarize asks the model once for a user-facing message. A short
// confirmation is requested when confirm is set. It never fails: on any error
// it logs and returns SummaryFallback.
func (s *Summarizer) Summarize(ctx context.Context, calls []Call, confirm bool) string {
	prompt, err := summaryPrompt(calls, confirm)
	if err != nil {
		s.logger.Warn("summary prompt", "err", err)
		return SummaryFallback
	}

	resp, err := s.llm.Generate(ctx, []llm.Turn{llm.UserTurn(prompt)}, nil, nil)
	if err != nil {
		s.logger.Warn("summarization failed", "err", err)
		return SummaryFallback
	}

	var b strings.Builder
	for _, p := range resp.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		s.logger.Warn("summarization returned no text")
		return SummaryFallback
	}
	return text
}

func summaryPrompt(calls []Call, confirm bool) (string, error) {
	var apiCalls []map[string]any
	var apiResponses []any
	for _, c := range calls {
		apiCalls = append(apiCalls, map[string]any{"tool": c.Tool, "args": c.Args})
		apiResponses = append(apiResponses, c.Result)
	}

	callsJSON, err := json.MarshalIndent(apiCalls, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding calls: %w", err)
	}
	respJSON, err := json.MarshalIndent(apiResponses, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding responses: %w", err)
	}

	responses := string(respJSON)
	if len(responses) > maxResultChars {
		cut := maxResultChars
		for cut > 0 && !utf8.RuneStart(responses[cut]) {
			cut--
		}
		responses = responses[:cut] + "\n... (truncated)"
	}

	instruction := summaryInstruction
	if confirm {
		instruction = confirmInstruction
	}

	return fmt.Sprintf(`System: You are a helpful assistant. Your job is to review the results of the API calls below and write a friendly, easy to understand message for the user.

API calls:
%s

API responses:
%s

%s

Return only the message, without any explanation or extra formatting.`, callsJSON, responses, instruction), nil
}
