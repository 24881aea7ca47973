package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/schoolbot/internal/server"
	"github.com/michaelbrown/schoolbot/internal/storage"
	"github.com/michaelbrown/schoolbot/internal/storage/sqlite"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the schoolbot HTTP server",
	Long: `Start the schoolbot HTTP server.

Endpoints:
  POST /chat      one chat request (Authorization: Bearer <token>)
  GET  /chat/ws   WebSocket chat with live tool-call events
  GET  /healthz   liveness

Examples:
  schoolbot serve
  schoolbot serve --port 9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	a, err := newAgent(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	// Optional audit log
	var store storage.Store
	if cfg.Storage.Enabled {
		s, err := sqlite.Open(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer s.Close()
		store = s
		logger.Info("trace log enabled", "path", cfg.Storage.DBPath)
	}

	port := cfg.Server.Port
	if portFlag > 0 {
		port = portFlag
	}

	srv := server.New(a, server.Options{
		AllowedOrigin:  cfg.Server.AllowedOrigin,
		RequestTimeout: cfg.Server.RequestTimeout,
		Store:          store,
		Logger:         logger,
	})

	logger.Info("configured",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"backend", cfg.Backend.BaseURL,
		"allowed_origin", cfg.Server.AllowedOrigin,
		"max_turns", cfg.Agent.MaxTurns)

	// Graceful shutdown on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		srv.Shutdown(context.Background())
	}()

	if err := srv.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
