package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmbeddedCall(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantOK   bool
		wantName string
		wantArgs map[string]any
	}{
		{
			name:     "fenced json",
			text:     "```json\n{\"parts\":[{\"function_call\":{\"name\":\"find_classes\",\"args\":{\"name\":\"Math\"}}}]}\n```",
			wantOK:   true,
			wantName: "find_classes",
			wantArgs: map[string]any{"name": "Math"},
		},
		{
			name:     "bare json with surrounding whitespace",
			text:     "  {\"parts\":[{\"function_call\":{\"name\":\"history_messages\",\"args\":{\"chatId\":3}}}]}\n",
			wantOK:   true,
			wantName: "history_messages",
			wantArgs: map[string]any{"chatId": float64(3)},
		},
		{
			name:     "fence without language",
			text:     "```\n{\"parts\":[{\"function_call\":{\"name\":\"find_classes\"}}]}\n```",
			wantOK:   true,
			wantName: "find_classes",
			wantArgs: map[string]any{},
		},
		{
			name:     "camel case key",
			text:     `{"parts":[{"functionCall":{"name":"find_classes","args":{"month":5,"year":2024}}}]}`,
			wantOK:   true,
			wantName: "find_classes",
			wantArgs: map[string]any{"month": float64(5), "year": float64(2024)},
		},
		{
			name:     "nested args",
			text:     `{"parts":[{"function_call":{"name":"create_class","args":{"sessions":[{"sessionKey":"SESSION_1"}]}}}]}`,
			wantOK:   true,
			wantName: "create_class",
			wantArgs: map[string]any{"sessions": []any{map[string]any{"sessionKey": "SESSION_1"}}},
		},
		{name: "plain prose", text: "There are three classes this month."},
		{name: "json without parts", text: `{"answer": 42}`},
		{name: "call only in second part", text: `{"parts":[{"text":"hi"},{"function_call":{"name":"find_classes"}}]}`},
		{name: "missing name", text: `{"parts":[{"function_call":{"args":{}}}]}`},
		{name: "broken json", text: "```json\n{\"parts\":[\n```"},
		{name: "empty fence", text: "```json\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, ok := parseEmbeddedCall(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Nil(t, call)
				return
			}
			require.NotNil(t, call)
			assert.Equal(t, tt.wantName, call.Name)
			assert.Equal(t, tt.wantArgs, call.Args)
		})
	}
}
