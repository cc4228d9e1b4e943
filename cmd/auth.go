package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/router"
	"github.com/desertthunder/orbitune/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) authenticate(ctx context.Context, cmd *cli.Command, register bool) error {
	if err := r.start(ctx); err != nil {
		return err
	}

	do := r.sessions.Login
	if register {
		do = r.sessions.Register
	}
	sess, err := do(ctx, cmd.String("email"), cmd.String("password"))
	if err != nil {
		return err
	}

	r.logger.Info("loading library", "user", sess.UserID)
	r.sessions.Wait()

	r.writePlain("✓ Logged in as %s\n", sess.Handle())
	for _, key := range r.cache.Keys() {
		entry := r.cache.Entry(key)
		if entry.State == models.Error {
			r.writePlain("  ✗ %s: %s\n", key, entry.Err)
			continue
		}
		r.writePlain("  ✓ %s\n", key)
	}
	return nil
}

// Register creates an account and logs in.
func (r *Runner) Register(ctx context.Context, cmd *cli.Command) error {
	return r.authenticate(ctx, cmd, true)
}

// Login authenticates and waits for the initial library load.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	return r.authenticate(ctx, cmd, false)
}

// Logout clears the persisted session.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	if err := r.start(ctx); err != nil {
		return err
	}
	r.sessions.Restore(ctx)
	if err := r.sessions.Logout(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	return r.writePlain("✓ Logged out\n")
}

// Whoami prints the persisted session.
func (r *Runner) Whoami(ctx context.Context, cmd *cli.Command) error {
	if err := r.start(ctx); err != nil {
		return err
	}
	if !r.sessions.Restore(ctx) {
		return r.writePlain("Not logged in\n")
	}

	sess := r.sessions.Current()
	if cmd.Bool("json") {
		return r.writeJSON(sess, true)
	}
	r.writePlain("User: %s\n", sess.Handle())
	r.writePlain("ID: %s\n", sess.UserID)
	if sess.Email != "" {
		r.writePlain("Email: %s\n", sess.Email)
	}
	return nil
}

func parseQuery(pairs []string) (url.Values, error) {
	q := url.Values{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: query %q is not key=value", shared.ErrInvalidFlag, pair)
		}
		q.Add(k, v)
	}
	return q, nil
}

// Navigate prints the guard decision for a path. The persisted session is restored only when
// the guard asks for it.
func (r *Runner) Navigate(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	query, err := parseQuery(cmd.StringSlice("query"))
	if err != nil {
		return err
	}

	if err := r.start(ctx); err != nil {
		return err
	}

	restored := false
	decision := router.Decide(router.Target{Path: path, Query: query}, r.sessions.Current(), func() (models.Session, bool) {
		restored = true
		ok := r.sessions.Restore(ctx)
		return r.sessions.Current(), ok
	})

	r.logger.Debug("guard decision", "path", path, "rule", decision.Rule, "restored", restored)
	return r.writePlain("%s\n", decision)
}
