// Command school-ops exposes the school-management tools as an MCP server
// over stdio, so any MCP client can drive the backend with the same
// validation the chat service applies.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/schoolbot/internal/backend"
	"github.com/michaelbrown/schoolbot/internal/config"
	"github.com/michaelbrown/schoolbot/internal/llm"
	"github.com/michaelbrown/schoolbot/internal/tools"
)

func main() {
	// stdout carries the protocol; logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(os.Getenv("SCHOOLBOT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	gw := backend.NewGateway(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)
	exec := tools.NewExecutor(tools.NewRegistry(), gw, logger)

	s := newServer(exec, os.Getenv("SCHOOL_API_TOKEN"))
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// runner is the part of tools.Executor the server uses.
type runner interface {
	Execute(ctx context.Context, name string, args map[string]any, token string) (any, error)
	ToolDefs() []llm.ToolDef
}

func newServer(exec runner, token string) *server.MCPServer {
	s := server.NewMCPServer("schoolbot-school-ops", "0.1.0")
	for _, def := range exec.ToolDefs() {
		s.AddTool(toMCPTool(def), handler(exec, def.Name, token))
	}
	return s
}

func toMCPTool(def llm.ToolDef) mcp.Tool {
	schema := mcp.ToolInputSchema{Type: "object"}
	if props, ok := def.Parameters["properties"].(map[string]any); ok {
		schema.Properties = props
	}
	if required, ok := def.Parameters["required"].([]string); ok {
		schema.Required = required
	}
	return mcp.Tool{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: schema,
	}
}

func handler(exec runner, name, token string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := llm.NormalizeArgs(getArgs(request))
		if err != nil {
			return errResult(fmt.Sprintf("error: %v", err)), nil
		}

		result, err := exec.Execute(ctx, name, args, token)
		if err != nil {
			return errResult(fmt.Sprintf("error: %v", err)), nil
		}

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errResult(fmt.Sprintf("error encoding result: %v", err)), nil
		}
		return textResult(strings.TrimSpace(string(data))), nil
	}
}

func getArgs(request mcp.CallToolRequest) map[string]any {
	args, _ := request.Params.Arguments.(map[string]any)
	return args
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
