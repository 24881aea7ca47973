package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExportMarkdown renders a trace as a markdown document.
func ExportMarkdown(t *Trace) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Trace %s\n\n", t.ID))
	b.WriteString(fmt.Sprintf("- **Created:** %s\n", t.CreatedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("- **Status:** %s (%d)\n", t.Status, t.HTTPStatus))
	if t.ChatID != nil {
		b.WriteString(fmt.Sprintf("- **Chat:** %d\n", *t.ChatID))
	}
	if t.UserID != nil {
		b.WriteString(fmt.Sprintf("- **User:** %d\n", *t.UserID))
	}
	b.WriteString(fmt.Sprintf("- **Tool calls:** %d\n", t.CallCount()))
	b.WriteString(fmt.Sprintf("- **Duration:** %s\n", t.Duration))
	b.WriteString("\n---\n\n")

	b.WriteString(fmt.Sprintf("## User\n\n%s\n\n", t.Message))

	for i, c := range t.Calls {
		args, _ := json.MarshalIndent(c.Args, "", "  ")
		b.WriteString(fmt.Sprintf("**Tool Call %d:** `%s`\n```json\n%s\n```\n\n", i+1, c.Tool, string(args)))
		if c.Error != "" {
			b.WriteString(fmt.Sprintf("**Error:** %s\n\n", c.Error))
			continue
		}
		result, _ := json.MarshalIndent(c.Result, "", "  ")
		b.WriteString(fmt.Sprintf("<details>\n<summary>Tool Result</summary>\n\n```json\n%s\n```\n</details>\n\n", string(result)))
	}

	if t.Error != "" {
		b.WriteString(fmt.Sprintf("## Error\n\n%s\n\n", t.Error))
	}
	b.WriteString(fmt.Sprintf("## Assistant\n\n%s\n", t.Response))

	return b.String()
}

// ExportJSON renders a trace as formatted JSON.
func ExportJSON(t *Trace) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ExportYAML renders a trace as YAML.
func ExportYAML(t *Trace) ([]byte, error) {
	return yaml.Marshal(t)
}

// Export renders a trace in the named format: md, json or yaml.
func Export(t *Trace, format string) ([]byte, error) {
	switch format {
	case "md", "markdown":
		return []byte(ExportMarkdown(t)), nil
	case "json":
		return ExportJSON(t)
	case "yaml", "yml":
		return ExportYAML(t)
	default:
		return nil, fmt.Errorf("unknown export format %q (want md, json or yaml)", format)
	}
}
