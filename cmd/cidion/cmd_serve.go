package main

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/comigor/cidion/internal/logger"
	"github.com/comigor/cidion/internal/server"
)

// ServeCmd starts the HTTP API.
type ServeCmd struct {
	Host string `help:"Override the configured listen host"`
	Port string `short:"p" help:"Override the configured listen port"`
}

func (s *ServeCmd) Run(kctx *kong.Context, cli *CLI) error {
	cfg, err := loadConfig(cli, "")
	if err != nil {
		return err
	}
	if s.Host != "" {
		cfg.Server.Host = s.Host
	}
	if s.Port != "" {
		cfg.Server.Port = s.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.L.Warn("failed to close resources", "error", err)
		}
	}()

	e := server.New(server.NewHandler(a.agent, a.store, a.tools))
	return server.Run(ctx, e, net.JoinHostPort(cfg.Server.Host, cfg.Server.Port))
}
