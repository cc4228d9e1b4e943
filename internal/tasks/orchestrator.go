package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/orbitune/internal/cache"
	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/services"
	"github.com/desertthunder/orbitune/internal/shared"
	"golang.org/x/sync/errgroup"
)

// Backend is the subset of the backend client the orchestrator drives.
type Backend interface {
	ConnectedServices(ctx context.Context, userID string) ([]models.ConnectedService, error)
	DisconnectService(ctx context.Context, userID string, p models.Platform) error
	SyncServices(ctx context.Context, userID string) error
	Playlists(ctx context.Context, userID string, p models.Platform) ([]models.Playlist, error)
	PlaylistTracks(ctx context.Context, userID, playlistID string, p models.Platform) (*services.PlaylistTracks, error)
	TrackCounts(ctx context.Context, ids []string) (map[string]int, error)
	Favorites(ctx context.Context, userID string, p models.Platform, offset, limit int) (*services.FavoritesPage, error)
}

// Options tunes an [Orchestrator].
type Options struct {
	Platforms      []models.Platform // providers fetched on login
	PageSize       int               // favorites page size
	RefreshDelay   time.Duration     // delay of the one-shot background refresh; zero disables it
	MaxConcurrency int               // parallel fetches during fan-out
	SyncOnLogin    bool              // trigger a provider re-sync after fan-out
	Progress       chan<- ProgressUpdate
	Logger         *log.Logger
}

// OptionsFromConfig maps the [sync] section onto [Options].
func OptionsFromConfig(cfg shared.SyncConfig) (Options, error) {
	platforms, err := models.ParsePlatforms(cfg.Platforms)
	if err != nil {
		return Options{}, fmt.Errorf("%w: sync.platforms: %v", shared.ErrInvalidConfig, err)
	}
	return Options{
		Platforms:      platforms,
		PageSize:       cfg.PageSize,
		RefreshDelay:   cfg.RefreshDelay,
		MaxConcurrency: cfg.MaxConcurrency,
		SyncOnLogin:    cfg.SyncOnLogin,
	}, nil
}

// Orchestrator fetches backend resources into a [cache.ResourceCache].
//
// It suppresses duplicate fetches, pages favorites lazily, batches track counts, fans out on
// login and owns the epoch-scoped background refresh.
type Orchestrator struct {
	backend   Backend
	cache     *cache.ResourceCache
	scheduler *Scheduler
	opts      Options
	logger    *log.Logger
}

// NewOrchestrator wires an orchestrator over backend and rc.
func NewOrchestrator(backend Backend, rc *cache.ResourceCache, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.Platforms == nil {
		opts.Platforms = models.ProviderPlatforms()
	}
	return &Orchestrator{
		backend:   backend,
		cache:     rc,
		scheduler: NewScheduler(opts.Logger),
		opts:      opts,
		logger:    opts.Logger,
	}
}

// Cache returns the cache the orchestrator writes into.
func (o *Orchestrator) Cache() *cache.ResourceCache { return o.cache }

// Scheduler returns the background task scheduler.
func (o *Orchestrator) Scheduler() *Scheduler { return o.scheduler }

// Platforms returns the providers fetched on login.
func (o *Orchestrator) Platforms() []models.Platform { return o.opts.Platforms }

// PageSize returns the default favorites page size.
func (o *Orchestrator) PageSize() int { return o.opts.PageSize }

func validateUser(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	return nil
}

func validateProvider(p models.Platform) error {
	if !p.Valid() || p == models.Orbitune {
		return fmt.Errorf("%w: %s is not a provider", shared.ErrInvalidArgument, p)
	}
	return nil
}

func normalizeKey(key models.CacheKey) (models.CacheKey, error) {
	if key.Kind == models.ConnectedServices {
		return models.ServicesKey(), nil
	}
	if err := validateProvider(key.Platform); err != nil {
		return key, err
	}
	return key, nil
}

// committed hides stale-epoch drops, which the cache already logged.
func committed(err error) error {
	if errors.Is(err, shared.ErrStaleEpoch) {
		return nil
	}
	return err
}

// fail records err on key and returns it.
func (o *Orchestrator) fail(epoch uint64, key models.CacheKey, err error) error {
	msg := services.ErrorMessage(err)
	o.logger.Warn("fetch failed", "key", key, "error", msg)
	o.cache.Fail(epoch, key, msg)
	return err
}

// FetchIfAbsent loads key unless it is populated or already in flight.
//
// The error mirrors what was recorded on the slot; callers may ignore it and read the cache instead.
func (o *Orchestrator) FetchIfAbsent(ctx context.Context, userID string, key models.CacheKey) error {
	return o.fetch(ctx, userID, key, false)
}

// Refresh re-fetches key even when populated. A fetch already in flight is not duplicated.
func (o *Orchestrator) Refresh(ctx context.Context, userID string, key models.CacheKey) error {
	return o.fetch(ctx, userID, key, true)
}

func (o *Orchestrator) fetch(ctx context.Context, userID string, key models.CacheKey, force bool) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}

	epoch, ok := o.cache.Begin(key, force)
	if !ok {
		return nil
	}

	switch key.Kind {
	case models.ConnectedServices:
		list, err := o.backend.ConnectedServices(ctx, userID)
		if err != nil {
			return o.fail(epoch, key, err)
		}
		return committed(o.cache.SetServices(epoch, list))
	case models.Playlists:
		list, err := o.backend.Playlists(ctx, userID, key.Platform)
		if err != nil {
			return o.fail(epoch, key, err)
		}
		if err := o.cache.SetPlaylists(epoch, key.Platform, list); err != nil {
			return committed(err)
		}
		o.HydrateCounts(ctx, key.Platform)
		return nil
	case models.Favorites:
		return o.loadPage(ctx, epoch, userID, key.Platform, 0, o.opts.PageSize)
	default:
		o.cache.Release(epoch, key)
		return fmt.Errorf("%w: resource kind %d", shared.ErrInvalidArgument, key.Kind)
	}
}

func (o *Orchestrator) loadPage(ctx context.Context, epoch uint64, userID string, p models.Platform, offset, limit int) error {
	key := models.Key(p, models.Favorites)

	page, err := o.backend.Favorites(ctx, userID, p, offset, limit)
	if err != nil {
		return o.fail(epoch, key, err)
	}

	cp := cache.Page{Tracks: page.Tracks, TotalCount: page.TracksCount}
	if page.Playlist != nil {
		cp.PlaylistID = page.Playlist.ID.String()
		cp.ExternalPlaylistID = page.Playlist.ExternalID
	}

	err = o.cache.MergeFavoritesPage(epoch, p, offset, cp)
	switch {
	case errors.Is(err, shared.ErrOutOfOrderPage):
		o.cache.Release(epoch, key)
		return err
	case err != nil:
		return committed(err)
	}

	fav, _ := o.cache.Favorites(p)
	sendProgress(o.opts.Progress, favoritesPageUpdate(p, offset, fav.LoadedOffset, fav.TotalCount))
	return nil
}

// FetchPage loads one favorites page of p starting at offset.
//
// Offset 0 replaces the collection. Any other offset must equal the loaded offset; otherwise
// [shared.ErrOutOfOrderPage] is returned before any request is made and the collection is left as is.
// A non-positive limit uses the configured page size.
func (o *Orchestrator) FetchPage(ctx context.Context, userID string, p models.Platform, offset, limit int) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	if err := validateProvider(p); err != nil {
		return err
	}
	if limit <= 0 {
		limit = o.opts.PageSize
	}
	if err := o.cache.CheckPage(p, offset); err != nil {
		o.cache.SetErr(err.Error())
		return err
	}

	epoch, ok := o.cache.Begin(models.Key(p, models.Favorites), true)
	if !ok {
		return nil
	}
	return o.loadPage(ctx, epoch, userID, p, offset, limit)
}

// HydrateCounts resolves the track counts of every cached playlist of p in one request.
// Failures land in the cache's shared error field; playlists keep their previous counts.
func (o *Orchestrator) HydrateCounts(ctx context.Context, p models.Platform) error {
	epoch := o.cache.Epoch()
	playlists := o.cache.Playlists(p)
	if len(playlists) == 0 {
		return nil
	}

	ids := make([]string, 0, len(playlists))
	for _, pl := range playlists {
		ids = append(ids, pl.ID.String())
	}

	counts, err := o.backend.TrackCounts(ctx, ids)
	if err != nil {
		o.logger.Warn("track count hydration failed", "platform", p, "error", err)
		if o.cache.Epoch() == epoch {
			o.cache.SetErr(services.ErrorMessage(err))
		}
		return err
	}
	if err := o.cache.MergeCounts(epoch, p, counts); err != nil {
		return committed(err)
	}
	sendProgress(o.opts.Progress, countsUpdate(p, len(counts), len(ids)))
	return nil
}

// FetchPlaylistTracks hydrates one playlist's tracks. It does nothing when the tracks are
// already present or a hydration of the same playlist is running.
func (o *Orchestrator) FetchPlaylistTracks(ctx context.Context, userID string, p models.Platform, playlistID string) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	if err := validateProvider(p); err != nil {
		return err
	}
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	epoch, ok := o.cache.BeginTracks(p, playlistID)
	if !ok {
		return nil
	}

	res, err := o.backend.PlaylistTracks(ctx, userID, playlistID, p)
	if err != nil {
		o.cache.EndTracks(epoch, p, playlistID)
		o.logger.Warn("playlist tracks failed", "platform", p, "playlist", playlistID, "error", err)
		if o.cache.Epoch() == epoch {
			o.cache.SetErr(services.ErrorMessage(err))
		}
		return err
	}

	if err := o.cache.SetPlaylistTracks(epoch, p, playlistID, res.Tracks, res.TracksCount); err != nil {
		return committed(err)
	}
	sendProgress(o.opts.Progress, tracksUpdate(p, playlistID, len(res.Tracks)))
	return nil
}

// FavoritesPlaylistID returns the provider-side id of the favorites playlist, or "" when it
// cannot be determined. Failures are logged and swallowed.
func (o *Orchestrator) FavoritesPlaylistID(ctx context.Context, userID string, p models.Platform) string {
	if fav, ok := o.cache.Favorites(p); ok && fav.ExternalPlaylistID != "" {
		return fav.ExternalPlaylistID
	}
	if validateUser(userID) != nil || validateProvider(p) != nil {
		return ""
	}

	page, err := o.backend.Favorites(ctx, userID, p, 0, 1)
	if err != nil {
		o.logger.Debug("favorites playlist lookup failed", "platform", p, "error", err)
		return ""
	}
	if page.Playlist == nil {
		return ""
	}
	return page.Playlist.ExternalID
}

// Disconnect unlinks p, drops its cached slots and reloads the connected services.
func (o *Orchestrator) Disconnect(ctx context.Context, userID string, p models.Platform) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	if err := validateProvider(p); err != nil {
		return err
	}

	if err := o.backend.DisconnectService(ctx, userID, p); err != nil {
		o.cache.SetErr(services.ErrorMessage(err))
		return err
	}
	o.cache.Evict(p)
	sendProgress(o.opts.Progress, disconnectUpdate(p))
	return o.Refresh(ctx, userID, models.ServicesKey())
}

// SyncProviders asks the backend to re-sync linked providers. Failures are logged and swallowed.
func (o *Orchestrator) SyncProviders(ctx context.Context, userID string) {
	if validateUser(userID) != nil {
		return
	}
	if err := o.backend.SyncServices(ctx, userID); err != nil {
		o.logger.Debug("provider sync failed", "error", err)
		return
	}
	sendProgress(o.opts.Progress, ProgressUpdate{Phase: SyncProviders, Step: 1, Total: 1, Message: "Provider sync requested"})
}

// run executes jobs with bounded concurrency and joins their errors.
func (o *Orchestrator) run(ctx context.Context, jobs []func(context.Context) error, report func(step, total int, i int, err error)) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
		done int
	)
	g.SetLimit(o.opts.MaxConcurrency)

	for i, job := range jobs {
		g.Go(func() error {
			err := job(ctx)
			mu.Lock()
			done++
			step := done
			if err != nil {
				errs = append(errs, err)
			}
			mu.Unlock()
			if report != nil {
				report(step, len(jobs), i, err)
			}
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

// FanOut fetches connected services plus playlists and the first favorites page of every
// configured platform. Failures are recorded per slot and joined into the returned error.
func (o *Orchestrator) FanOut(ctx context.Context, sess models.Session) error {
	if !sess.IsAuthenticated {
		return nil
	}

	keys := []models.CacheKey{models.ServicesKey()}
	for _, p := range o.opts.Platforms {
		keys = append(keys, models.Key(p, models.Playlists), models.Key(p, models.Favorites))
	}

	jobs := make([]func(context.Context) error, len(keys))
	for i, key := range keys {
		jobs[i] = func(ctx context.Context) error {
			return o.FetchIfAbsent(ctx, sess.UserID, key)
		}
	}

	o.logger.Debug("fan-out started", "user", sess.UserID, "slots", len(keys))
	return o.run(ctx, jobs, func(step, total, i int, err error) {
		sendProgress(o.opts.Progress, fetchedUpdate(step, total, keys[i], err))
	})
}

// refreshAll re-fetches playlists and the first favorites page of every configured platform.
func (o *Orchestrator) refreshAll(ctx context.Context, sess models.Session) error {
	var jobs []func(context.Context) error
	for _, p := range o.opts.Platforms {
		jobs = append(jobs,
			func(ctx context.Context) error {
				return o.Refresh(ctx, sess.UserID, models.Key(p, models.Playlists))
			},
			func(ctx context.Context) error {
				return o.FetchPage(ctx, sess.UserID, p, 0, o.opts.PageSize)
			},
		)
	}
	err := o.run(ctx, jobs, nil)
	sendProgress(o.opts.Progress, refreshedUpdate(len(jobs), len(jobs)))
	return err
}

// Hydrate runs the post-login work for epoch: fan-out, an optional provider sync, then one
// background refresh after the configured delay. Cancel(epoch) stops all of it.
func (o *Orchestrator) Hydrate(ctx context.Context, epoch uint64, sess models.Session) {
	if o.cache.Epoch() != epoch || !sess.IsAuthenticated {
		return
	}

	ctx, cancel := o.scheduler.Context(ctx, epoch)
	defer cancel()

	o.FanOut(ctx, sess)
	if ctx.Err() != nil {
		return
	}
	if o.opts.SyncOnLogin {
		o.SyncProviders(ctx, sess.UserID)
	}

	if o.opts.RefreshDelay <= 0 {
		return
	}
	task, err := o.scheduler.Schedule(epoch, o.opts.RefreshDelay, "background-refresh", func(ctx context.Context) {
		if err := o.refreshAll(ctx, sess); err != nil {
			o.logger.Debug("background refresh finished with errors", "error", err)
		}
	})
	if err != nil {
		o.logger.Debug("background refresh not scheduled", "error", err)
		return
	}
	sendProgress(o.opts.Progress, scheduledUpdate(task))
}

// Cancel stops scheduled and running work of epoch.
func (o *Orchestrator) Cancel(epoch uint64) {
	o.scheduler.Cancel(epoch)
}

// Shutdown stops all scheduled work.
func (o *Orchestrator) Shutdown() {
	o.scheduler.Shutdown()
}
