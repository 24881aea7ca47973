package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/schoolbot/internal/agent"
	"github.com/michaelbrown/schoolbot/internal/llm"
)

var (
	tokenFlag  string
	chatIDFlag int64
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant from the terminal",
	Long: `Start an interactive REPL against the configured backend. Every line is
an independent request; nothing is remembered between lines.

The backend token comes from --token or SCHOOL_API_TOKEN.

Examples:
  schoolbot chat --token $TOKEN
  schoolbot chat --chat-id 12 --provider openai --model llama3.1`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&tokenFlag, "token", "", "Backend bearer token (default: $SCHOOL_API_TOKEN)")
	chatCmd.Flags().Int64Var(&chatIDFlag, "chat-id", 0, "Conversation id passed with every request")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	token := tokenFlag
	if token == "" {
		token = os.Getenv("SCHOOL_API_TOKEN")
	}
	if token == "" {
		return fmt.Errorf("a backend token is required (--token or SCHOOL_API_TOKEN)")
	}

	a, err := newAgent(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	fmt.Printf("schoolbot - interactive chat\n")
	fmt.Printf("Provider: %s | Model: %s | Backend: %s\n", cfg.LLM.Provider, cfg.LLM.Model, cfg.Backend.BaseURL)
	fmt.Printf("Type /help for commands, /quit to exit\n\n")

	histFile := filepath.Join(os.TempDir(), "schoolbot_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36myou>\033[0m ",
		HistoryFile:     histFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	// Ctrl+C cancels the active request, not the whole app.
	var reqCancel context.CancelFunc
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if reqCancel != nil {
				reqCancel()
			}
		}
	}()

	var last *agent.Result
	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := handleCommand(input, last); quit {
				return nil
			}
			continue
		}

		req := agent.Request{
			Message:      input,
			Token:        token,
			OnToolCall:   printToolCall,
			OnToolResult: printToolResult,
		}
		if chatIDFlag > 0 {
			id := chatIDFlag
			req.ChatID = &id
		}

		reqCtx, cancel := context.WithCancel(context.Background())
		reqCancel = cancel
		res, err := a.Chat(reqCtx, req)
		wasInterrupted := reqCtx.Err() != nil
		cancel()
		reqCancel = nil
		last = res

		if err != nil {
			if wasInterrupted {
				fmt.Println("\n(interrupted)")
				continue
			}
			fmt.Printf("\n\033[31merror: %s\033[0m (tool calls: %d)\n\n", err, res.Count())
			continue
		}

		fmt.Printf("\n\033[32mschoolbot>\033[0m %s\n\n", res.Response)
	}
}

func printToolCall(call llm.ToolCall) {
	fmt.Printf("\n  \033[33m⚡ Tool: %s\033[0m\n", formatToolCall(call.Name, call.Args))
}

func printToolResult(call llm.ToolCall, result any) {
	data, _ := json.MarshalIndent(result, "", "  ")
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	preview := lines
	if len(preview) > 8 {
		preview = preview[:8]
	}
	for _, line := range preview {
		fmt.Printf("  \033[90m│ %s\033[0m\n", line)
	}
	if len(lines) > 8 {
		fmt.Printf("  \033[90m│ ... (%d more lines)\033[0m\n", len(lines)-8)
	}
}

// handleCommand runs a slash command and reports whether the REPL should exit.
func handleCommand(input string, last *agent.Result) bool {
	switch strings.ToLower(strings.Fields(input)[0]) {
	case "/quit", "/exit", "/q":
		fmt.Println("Goodbye!")
		return true
	case "/trace":
		if last == nil {
			fmt.Println("No request yet.")
			fmt.Println()
			break
		}
		data, _ := json.MarshalIndent(last.Calls, "", "  ")
		fmt.Println(string(data))
		fmt.Println()
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /help   - Show this help")
		fmt.Println("  /trace  - Show the tool calls of the last request (JSON)")
		fmt.Println("  /quit   - Exit")
		fmt.Println()
	default:
		fmt.Printf("Unknown command: %s (try /help)\n\n", input)
	}
	return false
}
