package agent

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/schoolbot/internal/llm"
)

func TestSummaryPrompt(t *testing.T) {
	calls := []Call{{
		Tool:   "find_classes",
		Args:   map[string]any{"name": "Math"},
		Result: map[string]any{"total": float64(1)},
	}}

	prompt, err := summaryPrompt(calls, false)
	require.NoError(t, err)
	assert.Contains(t, prompt, `"tool": "find_classes"`)
	assert.Contains(t, prompt, `"total": 1`)
	assert.Contains(t, prompt, "Summarize the important information")
	assert.NotContains(t, prompt, "short message confirming")

	prompt, err = summaryPrompt(calls, true)
	require.NoError(t, err)
	assert.Contains(t, prompt, "short message confirming")
}

func TestSummaryPromptTruncatesLargeResults(t *testing.T) {
	calls := []Call{{Tool: "find_messages", Result: strings.Repeat("x", maxResultChars*2)}}

	prompt, err := summaryPrompt(calls, false)
	require.NoError(t, err)
	assert.Contains(t, prompt, "... (truncated)")
	assert.Less(t, len(prompt), maxResultChars+2000)
}

func TestSummaryPromptTruncatesOnRuneBoundary(t *testing.T) {
	calls := []Call{{Tool: "find_messages", Result: "x" + strings.Repeat("ệ", maxResultChars)}}

	prompt, err := summaryPrompt(calls, false)
	require.NoError(t, err)
	assert.Contains(t, prompt, "... (truncated)")
	assert.True(t, utf8.ValidString(prompt))
}

func TestSummarizeEmptyReply(t *testing.T) {
	client := &scriptedLLM{replies: []*llm.Response{{Parts: []llm.Part{{Text: "   "}}}}}
	s := NewSummarizer(client, nil)

	got := s.Summarize(context.Background(), []Call{{Tool: "find_classes"}}, false)
	assert.Equal(t, SummaryFallback, got)
}

func TestSummarizeJoinsParts(t *testing.T) {
	client := &scriptedLLM{replies: []*llm.Response{{Parts: []llm.Part{{Text: "Class "}, {Text: "created."}}}}}
	s := NewSummarizer(client, nil)

	got := s.Summarize(context.Background(), []Call{{Tool: "create_class"}}, true)
	assert.Equal(t, "Class created.", got)
	assert.Nil(t, client.gens[0])
}
