package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/orbitune/internal/cache"
	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/repositories"
	"github.com/desertthunder/orbitune/internal/services"
	"github.com/desertthunder/orbitune/internal/session"
	"github.com/desertthunder/orbitune/internal/shared"
	"github.com/desertthunder/orbitune/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The client components are built on first use by [Runner.start] and torn down by [Runner.Close].
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	storage     repositories.Repository
	ownsStorage bool
	backend     *services.Backend
	cache       *cache.ResourceCache
	orch        *tasks.Orchestrator
	sessions    *session.Store
	progress    chan tasks.ProgressUpdate
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Storage    repositories.Repository // overrides the configured storage driver
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		storage:    opts.Storage,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, registerCommand, loginCommand, logoutCommand, whoamiCommand, navigateCommand,
		servicesCommand, playlistsCommand, tracksCommand, favoritesCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// configure loads the config file at path when it exists. A config passed to [NewRunner] is
// kept when the file is missing.
func (r *Runner) configure(path string, debug bool) error {
	r.configPath = path
	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return err
		}
		r.config = config
	} else if r.config == nil {
		r.config = shared.DefaultConfig()
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if debug {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return nil
}

// start builds the client stack once: storage, backend, cache, orchestrator and session store.
func (r *Runner) start(ctx context.Context) error {
	if r.sessions != nil {
		return nil
	}
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}

	if r.storage == nil {
		storage, err := repositories.Open(ctx, r.config.Storage)
		if err != nil {
			return err
		}
		r.storage = storage
		r.ownsStorage = true
	}

	opts, err := tasks.OptionsFromConfig(r.config.Sync)
	if err != nil {
		return err
	}
	r.progress = make(chan tasks.ProgressUpdate, 64)
	opts.Progress = r.progress
	opts.Logger = shared.WithLogger(r.logger, "component", "orchestrator")

	r.backend = services.NewBackend(services.BackendOpts{
		BaseURL:    r.config.Backend.BaseURL,
		Timeout:    r.config.Backend.Timeout,
		RateLimit:  r.config.Backend.RateLimit,
		Burst:      r.config.Backend.Burst,
		HTTPClient: r.httpClient,
		Logger:     shared.WithLogger(r.logger, "component", "backend"),
	})
	r.cache = cache.New(shared.WithLogger(r.logger, "component", "cache"))
	r.orch = tasks.NewOrchestrator(r.backend, r.cache, opts)
	r.sessions = session.New(r.backend, r.storage, r.cache, r.orch, session.Options{
		Logger: shared.WithLogger(r.logger, "component", "session"),
	})
	r.logger.Debug("client started", "backend", r.backend.BaseURL(), "storage", r.config.Storage.Driver)
	return nil
}

// requireSession starts the client and restores the persisted session without hydrating it.
func (r *Runner) requireSession(ctx context.Context) (models.Session, error) {
	if err := r.start(ctx); err != nil {
		return models.Session{}, err
	}
	if !r.sessions.Restore(ctx) {
		return models.Session{}, fmt.Errorf("%w: run 'orbitune login' first", shared.ErrNotAuthenticated)
	}
	return r.sessions.Current(), nil
}

// Close cancels background work and releases storage the runner opened itself.
func (r *Runner) Close() error {
	if r.sessions == nil {
		return nil
	}
	r.sessions.Teardown()
	r.sessions, r.orch, r.cache, r.backend = nil, nil, nil, nil

	if r.ownsStorage {
		err := r.storage.Close()
		r.storage, r.ownsStorage = nil, false
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrStorage, err)
		}
	}
	return nil
}

// platform resolves a --platform value, defaulting to the first configured platform.
func (r *Runner) platform(cmd *cli.Command) (models.Platform, error) {
	name := cmd.String("platform")
	if name == "" {
		platforms := r.orch.Platforms()
		if len(platforms) == 0 {
			return models.PlatformUnknown, fmt.Errorf("%w: --platform", shared.ErrMissingArgument)
		}
		return platforms[0], nil
	}
	p, err := models.ParsePlatform(name)
	if err != nil {
		return models.PlatformUnknown, fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}
	return p, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// cacheError surfaces a failed slot load, preferring the message the cache recorded.
func (r *Runner) cacheError(key models.CacheKey, err error) error {
	if err == nil {
		if entry := r.cache.Entry(key); entry.State == models.Error {
			return fmt.Errorf("%w: %s: %s", shared.ErrAPIRequest, key, entry.Err)
		}
		return nil
	}
	if errors.Is(err, shared.ErrStaleEpoch) {
		return nil
	}
	return fmt.Errorf("%s: %w", key, err)
}
