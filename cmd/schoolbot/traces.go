package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/schoolbot/internal/storage"
	"github.com/michaelbrown/schoolbot/internal/storage/sqlite"
)

var (
	statusFilter string
	chatFilter   int64
	limitFlag    int
	exportFormat string
	exportOutput string
	forceFlag    bool
)

var tracesCmd = &cobra.Command{
	Use:     "traces",
	Aliases: []string{"trace", "t"},
	Short:   "Inspect the audit log of handled chat requests",
}

var tracesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded traces",
	RunE:  runTracesList,
}

var tracesShowCmd = &cobra.Command{
	Use:   "show <trace-id>",
	Short: "Show a trace and its tool calls",
	Args:  cobra.ExactArgs(1),
	RunE:  runTracesShow,
}

var tracesDeleteCmd = &cobra.Command{
	Use:   "delete <trace-id>",
	Short: "Delete a trace",
	Args:  cobra.ExactArgs(1),
	RunE:  runTracesDelete,
}

var tracesExportCmd = &cobra.Command{
	Use:   "export <trace-id>",
	Short: "Export a trace as markdown, JSON or YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runTracesExport,
}

func init() {
	rootCmd.AddCommand(tracesCmd)
	tracesCmd.AddCommand(tracesListCmd, tracesShowCmd, tracesDeleteCmd, tracesExportCmd)

	tracesListCmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (ok, failed)")
	tracesListCmd.Flags().Int64Var(&chatFilter, "chat-id", 0, "Filter by conversation id")
	tracesListCmd.Flags().IntVar(&limitFlag, "limit", 20, "Max traces to show")

	tracesExportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: md, json or yaml")
	tracesExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")

	tracesDeleteCmd.Flags().BoolVar(&forceFlag, "force", false, "Skip confirmation")
}

func openStore() (storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return sqlite.Open(cfg.Storage.DBPath)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runTracesList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := storage.ListOptions{
		Status: storage.TraceStatus(statusFilter),
		Limit:  limitFlag,
	}
	if chatFilter > 0 {
		opts.ChatID = &chatFilter
	}

	traces, err := store.ListTraces(context.Background(), opts)
	if err != nil {
		return err
	}

	if len(traces) == 0 {
		fmt.Println("No traces found.")
		return nil
	}

	// Header
	fmt.Printf("%-10s %-8s %-6s %-6s %-45s %s\n", "ID", "STATUS", "HTTP", "CALLS", "MESSAGE", "CREATED")
	fmt.Println(strings.Repeat("─", 95))

	for _, t := range traces {
		msg := strings.ReplaceAll(t.Message, "\n", " ")
		if len(msg) > 43 {
			msg = msg[:43] + ".."
		}
		fmt.Printf("%-10s %-8s %-6d %-6d %-45s %s\n",
			shortID(t.ID), t.Status, t.HTTPStatus, t.CallCount(), msg, timeAgo(t.CreatedAt))
	}

	return nil
}

func runTracesShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	t, err := store.GetTrace(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Trace:    %s\n", t.ID)
	fmt.Printf("Status:   %s (%d)\n", t.Status, t.HTTPStatus)
	if t.ChatID != nil {
		fmt.Printf("Chat:     %d\n", *t.ChatID)
	}
	if t.UserID != nil {
		fmt.Printf("User:     %d\n", *t.UserID)
	}
	fmt.Printf("Created:  %s\n", t.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Duration: %s\n", t.Duration)
	if t.Error != "" {
		fmt.Printf("Error:    %s\n", t.Error)
	}

	fmt.Printf("\nTool calls: %d\n", t.CallCount())
	fmt.Println(strings.Repeat("─", 60))

	fmt.Printf("\n\033[36myou>\033[0m %s\n", truncate(t.Message, 200))
	for _, c := range t.Calls {
		fmt.Printf("  \033[33m⚡ %s\033[0m\n", formatToolCall(c.Tool, c.Args))
		if c.Error != "" {
			fmt.Printf("  \033[31m│ %s\033[0m\n", truncate(c.Error, 100))
			continue
		}
		data, _ := json.Marshal(c.Result)
		fmt.Printf("  \033[90m│ %s\033[0m\n", truncate(string(data), 100))
	}
	fmt.Printf("\n\033[32mschoolbot>\033[0m %s\n", truncate(t.Response, 200))

	return nil
}

func runTracesDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	t, err := store.GetTrace(ctx, args[0])
	if err != nil {
		return err
	}

	if !forceFlag {
		fmt.Printf("Delete trace %s - %q? [y/N] ", shortID(t.ID), truncate(t.Message, 40))
		var confirm string
		fmt.Scanln(&confirm)
		if strings.ToLower(confirm) != "y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := store.DeleteTrace(ctx, t.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted trace %s\n", shortID(t.ID))
	return nil
}

func runTracesExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	t, err := store.GetTrace(context.Background(), args[0])
	if err != nil {
		return err
	}

	output, err := storage.Export(t, exportFormat)
	if err != nil {
		return err
	}

	if exportOutput != "" {
		return os.WriteFile(exportOutput, output, 0o644)
	}

	fmt.Print(string(output))
	return nil
}
