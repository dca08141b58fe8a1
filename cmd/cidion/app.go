package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/comigor/cidion/internal/agent"
	"github.com/comigor/cidion/internal/config"
	"github.com/comigor/cidion/internal/history"
	"github.com/comigor/cidion/internal/llm"
	"github.com/comigor/cidion/internal/logger"
	"github.com/comigor/cidion/pkg/tools"
)

// loadConfig applies the global flags and loads the configuration.
// logFormat overrides the configured format when non-empty.
func loadConfig(cli *CLI, logFormat string) (*config.Config, error) {
	if cli.Config != "" {
		if err := os.Setenv("CONFIG_PATH", cli.Config); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

// app is the wired agent with everything it owns.
type app struct {
	cfg   *config.Config
	store *history.Store
	tools *tools.ToolManager
	mcp   []tools.MCPClient
	agent *agent.Agent
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := history.Open(cfg.History.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}

	tm, err := tools.NewDefaultToolManager(cfg, nil)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	mcpClients := tools.ConnectMCPServers(ctx, tm, cfg.MCPServers)
	logger.L.Info("tools registered", "count", tm.Len(), "names", tm.Names())

	completer := llm.NewCompleter(llm.NewClient(cfg.LLM), cfg.LLM.Model, cfg.LLM.Timeout)

	return &app{
		cfg:   cfg,
		store: store,
		tools: tm,
		mcp:   mcpClients,
		agent: agent.New(completer, tm, store, cfg),
	}, nil
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.mcp {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
