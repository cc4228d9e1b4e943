package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/orbitune/internal/formatter"
	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/shared"
	"github.com/urfave/cli/v3"
)

// Playlists prints one platform's playlists, or every configured platform's when --platform
// is omitted.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.requireSession(ctx)
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	platforms := r.orch.Platforms()
	if cmd.String("platform") != "" {
		p, err := r.providerFlag(cmd)
		if err != nil {
			return err
		}
		platforms = []models.Platform{p}
	}

	for _, p := range platforms {
		key := models.Key(p, models.Playlists)
		if cmd.Bool("refresh") {
			err = r.orch.Refresh(ctx, sess.UserID, key)
		} else {
			err = r.orch.FetchIfAbsent(ctx, sess.UserID, key)
		}
		if err := r.cacheError(key, err); err != nil {
			return err
		}

		if format == formatter.Text && len(platforms) > 1 {
			r.writePlainHeader(p.String())
		}
		if err := formatter.Write(r.output, format, p, r.cache.Playlists(p)); err != nil {
			return err
		}
	}
	return nil
}

// Tracks hydrates and prints one playlist.
func (r *Runner) Tracks(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.requireSession(ctx)
	if err != nil {
		return err
	}
	p, err := r.providerFlag(cmd)
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	id := cmd.String("id")

	key := models.Key(p, models.Playlists)
	if err := r.cacheError(key, r.orch.FetchIfAbsent(ctx, sess.UserID, key)); err != nil {
		return err
	}
	if err := r.orch.FetchPlaylistTracks(ctx, sess.UserID, p, id); err != nil {
		return fmt.Errorf("failed to load tracks: %w", err)
	}

	pl, ok := r.cache.Playlist(p, id)
	if !ok {
		return fmt.Errorf("%w: %s on %s", shared.ErrPlaylistNotFound, id, p)
	}
	return formatter.Write(r.output, format, p, pl)
}

// Favorites loads favorites pages in order until the requested window is covered, then prints
// that window.
func (r *Runner) Favorites(ctx context.Context, cmd *cli.Command) error {
	sess, err := r.requireSession(ctx)
	if err != nil {
		return err
	}
	p, err := r.providerFlag(cmd)
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	offset, limit := int(cmd.Int("offset")), int(cmd.Int("limit"))
	if offset < 0 || limit < 0 {
		return fmt.Errorf("%w: offset and limit must not be negative", shared.ErrInvalidFlag)
	}
	if limit == 0 {
		limit = r.orch.PageSize()
	}

	key := models.Key(p, models.Favorites)
	if err := r.cacheError(key, r.orch.FetchIfAbsent(ctx, sess.UserID, key)); err != nil {
		return err
	}

	for {
		fav, ok := r.cache.Favorites(p)
		if !ok || !fav.HasMore() || fav.LoadedOffset >= offset+limit {
			break
		}
		if err := r.orch.FetchPage(ctx, sess.UserID, p, fav.LoadedOffset, r.orch.PageSize()); err != nil {
			return fmt.Errorf("failed to load favorites page at %d: %w", fav.LoadedOffset, err)
		}
		if next, _ := r.cache.Favorites(p); next.LoadedOffset == fav.LoadedOffset {
			break
		}
	}

	fav, _ := r.cache.Favorites(p)
	start := min(offset, len(fav.Tracks))
	end := min(offset+limit, len(fav.Tracks))
	fav.Tracks = fav.Tracks[start:end]
	return formatter.Write(r.output, format, p, fav)
}
