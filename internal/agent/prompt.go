package agent

import (
	"fmt"
	"os"
	"strings"
)

// loadSystemPrompt reads the prompt asset. It is read on every request so
// edits take effect without a restart.
func loadSystemPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading system prompt %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// firstPrompt is the single combined prompt sent on the first model call.
func firstPrompt(system string, req Request) string {
	var b strings.Builder
	b.WriteString("System: ")
	b.WriteString(system)
	b.WriteString("\n\n")
	if req.ChatID != nil {
		fmt.Fprintf(&b, "Context: the current conversation has chatId %d. Use it for message tools.\n\n", *req.ChatID)
	}
	b.WriteString("User: ")
	b.WriteString(req.Message)
	b.WriteString("\n\nAssistant: Please respond to the user's request helpfully and in a friendly way.")
	return b.String()
}
