package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/server"
	"github.com/desertthunder/orbitune/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) providerFlag(cmd *cli.Command) (models.Platform, error) {
	p, err := r.platform(cmd)
	if err != nil {
		return p, err
	}
	if p == models.Orbitune {
		return p, fmt.Errorf("%w: %s is not a provider", shared.ErrInvalidFlag, p)
	}
	return p, nil
}

func (r *Runner) printServices(asJSON bool) error {
	list := r.cache.Services()
	if asJSON {
		return r.writeJSON(list, true)
	}

	r.writePlainHeader("Connected services")
	if len(list) == 0 {
		return r.writePlain("No providers linked. Run 'orbitune services connect --platform <name>'.\n")
	}
	for _, svc := range list {
		r.writePlain("%-14s %s\n", svc.Platform, svc.Status)
	}
	return nil
}

// ServicesList prints the linked providers.
func (r *Runner) ServicesList(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.requireSession(ctx)
	if err != nil {
		return err
	}

	key := models.ServicesKey()
	if err := r.cacheError(key, r.orch.Refresh(ctx, sess.UserID, key)); err != nil {
		return err
	}
	return r.printServices(cmd.Bool("json"))
}

// ServicesDisconnect unlinks a provider and prints what is still connected.
func (r *Runner) ServicesDisconnect(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.requireSession(ctx)
	if err != nil {
		return err
	}
	p, err := r.providerFlag(cmd)
	if err != nil {
		return err
	}

	if err := r.orch.Disconnect(ctx, sess.UserID, p); err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", p, err)
	}
	r.writePlain("✓ Disconnected %s\n", p)
	return r.printServices(false)
}

// ServicesSync asks the backend to pull fresh data from every linked provider.
func (r *Runner) ServicesSync(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.requireSession(ctx)
	if err != nil {
		return err
	}

	if err := r.backend.SyncServices(ctx, sess.UserID); err != nil {
		return fmt.Errorf("failed to start sync: %w", err)
	}
	return r.writePlain("✓ Sync started. Results appear after the backend finishes.\n")
}

// ServicesConnect opens the backend's OAuth login for a provider and waits on the local
// server for the completion redirect.
func (r *Runner) ServicesConnect(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.requireSession(ctx)
	if err != nil {
		return err
	}
	p, err := r.providerFlag(cmd)
	if err != nil {
		return err
	}

	handler := server.NewOAuthHandler()
	rt := server.NewBasicRouter()
	rt.Use(server.LoggingMiddleware(r.logger))
	rt.Handler(handler)

	ln, err := net.Listen("tcp", r.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	srv := &http.Server{Handler: rt, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("callback server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	loginURL := r.backend.OAuthLoginURL(p)
	r.logger.Info("starting provider link", "platform", p, "callback", ln.Addr().String())
	if err := shared.OpenBrowser(loginURL); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		r.writePlain("Open this URL to continue:\n%s\n", loginURL)
	}

	waitCtx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	linked, err := handler.Wait(waitCtx)
	if err != nil {
		return err
	}

	r.writePlain("✓ Linked %s\n", linked)
	key := models.ServicesKey()
	if err := r.cacheError(key, r.orch.Refresh(ctx, sess.UserID, key)); err != nil {
		return err
	}
	return r.printServices(false)
}
