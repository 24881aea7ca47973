package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/michaelbrown/schoolbot/internal/agent"
	"github.com/michaelbrown/schoolbot/internal/backend"
	"github.com/michaelbrown/schoolbot/internal/config"
	"github.com/michaelbrown/schoolbot/internal/llm"
	"github.com/michaelbrown/schoolbot/internal/tools"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if providerFlag != "" {
		cfg.LLM.Provider = providerFlag
	}
	if modelFlag != "" {
		cfg.LLM.Model = modelFlag
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verboseFlag {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newExecutor wires the tool catalog to the backend gateway.
func newExecutor(cfg *config.Config, logger *slog.Logger) *tools.Executor {
	gw := backend.NewGateway(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)
	return tools.NewExecutor(tools.NewRegistry(), gw, logger)
}

// newAgent builds the LLM client once and injects it, with the executor,
// into the agent.
func newAgent(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*agent.Agent, error) {
	client, err := llm.New(ctx, cfg.LLM.Provider, cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	return agent.New(client, newExecutor(cfg, logger), agent.Options{
		MaxTurns:   cfg.Agent.MaxTurns,
		PromptPath: cfg.Agent.SystemPromptPath,
		Logger:     logger,
	}), nil
}
