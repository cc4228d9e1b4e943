// package server contains middleware & handlers for the local Orbitune view server
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/orbitune/internal/cache"
	"github.com/desertthunder/orbitune/internal/models"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows which routes it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the mux patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Sessions is the read side of the session store plus its local restore.
type Sessions interface {
	Current() models.Session
	Restore(ctx context.Context) bool
	Err() string
}

// Fetcher loads resources into the cache the views read from.
type Fetcher interface {
	FetchIfAbsent(ctx context.Context, userID string, key models.CacheKey) error
	Refresh(ctx context.Context, userID string, key models.CacheKey) error
	FetchPage(ctx context.Context, userID string, p models.Platform, offset, limit int) error
	FetchPlaylistTracks(ctx context.Context, userID string, p models.Platform, playlistID string) error
	Cache() *cache.ResourceCache
	Platforms() []models.Platform
}

// Server serves the guarded JSON views.
type Server struct {
	router *BasicRouter
	http   *http.Server
	logger *log.Logger
}

// New builds a server listening on addr.
func New(addr string, sessions Sessions, fetcher Fetcher, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	r := NewBasicRouter()
	r.Use(
		LoggingMiddleware(logger),
		OAuthRefreshMiddleware(sessions, fetcher, logger),
		GuardMiddleware(sessions),
	)
	r.Handler(NewViewHandler(sessions, fetcher))
	logger.Debug("routes registered", "patterns", r.Patterns())

	return &Server{
		router: r,
		http:   &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second},
		logger: logger,
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("view server listening", "addr", s.http.Addr)
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("view server shutting down")
		return s.http.Shutdown(shutdownCtx)
	}
}
