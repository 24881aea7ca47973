package agent

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/michaelbrown/schoolbot/internal/llm"
)

// fence matches the opening and closing lines of a markdown code block.
var fence = regexp.MustCompile("^```(?:json)?[ \t]*\r?\n?|\r?\n?```$")

// parseEmbeddedCall detects a function call the model wrote as text, in the
// form {"parts":[{"function_call":{"name":...,"args":{...}}}]}, optionally
// wrapped in a code fence. Only the first part is inspected.
func parseEmbeddedCall(text string) (*llm.ToolCall, bool) {
	clean := strings.TrimSpace(fence.ReplaceAllString(strings.TrimSpace(text), ""))
	if clean == "" || !gjson.Valid(clean) {
		return nil, false
	}

	fc := gjson.Get(clean, "parts.0.function_call")
	if !fc.Exists() {
		fc = gjson.Get(clean, "parts.0.functionCall")
	}
	if !fc.IsObject() {
		return nil, false
	}

	name := fc.Get("name").String()
	if name == "" {
		return nil, false
	}

	var raw map[string]any
	if args := fc.Get("args"); args.IsObject() {
		raw, _ = args.Value().(map[string]any)
	}
	args, err := llm.NormalizeArgs(raw)
	if err != nil {
		return nil, false
	}
	return &llm.ToolCall{Name: name, Args: args}, true
}
