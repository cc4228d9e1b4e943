package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/router"
	"github.com/desertthunder/orbitune/internal/shared"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs one line per request and tags it with an X-Request-ID.
func LoggingMiddleware(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = shared.GenerateID()
			}
			w.Header().Set("X-Request-ID", id)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)

			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"request_id", id,
			)
		})
	}
}

// GuardMiddleware applies [router.Decide] to every GET and answers redirects with 302.
func GuardMiddleware(sessions Sessions) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			restore := func() (models.Session, bool) {
				ok := sessions.Restore(r.Context())
				return sessions.Current(), ok
			}
			d := router.Decide(router.Target{Path: r.URL.Path, Query: r.URL.Query()}, sessions.Current(), restore)
			if !d.Allowed() {
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OAuthRefreshMiddleware reloads connected services when a request carries a successful
// OAuth completion marker, so the landing page shows the newly linked provider.
func OAuthRefreshMiddleware(sessions Sessions, fetcher Fetcher, logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if result, ok := parseOAuthMarker(r); ok && result.Error() == nil {
				sess := sessions.Current()
				if !sess.IsAuthenticated && sessions.Restore(r.Context()) {
					sess = sessions.Current()
				}
				if sess.IsAuthenticated {
					ctx := context.WithoutCancel(r.Context())
					go func() {
						if err := fetcher.Refresh(ctx, sess.UserID, models.ServicesKey()); err != nil {
							logger.Debug("services refresh after oauth failed", "platform", result.Platform, "error", err)
						}
					}()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
