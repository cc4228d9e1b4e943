package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/orbitune/internal/server"
	"github.com/desertthunder/orbitune/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the local view server until interrupted. A persisted session is restored and
// hydrated first.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.start(ctx); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if r.sessions.Init(ctx) {
		r.logger.Info("session restored", "user", r.sessions.Current().Handle())
	}

	addr := r.config.Server.Addr()
	srv := server.New(addr, r.sessions, r.orch, shared.WithLogger(r.logger, "component", "server"))
	return srv.ListenAndServe(ctx)
}
