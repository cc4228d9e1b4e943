// Package server provides HTTP routing, middleware, and the local view server.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] patterns, so handlers read path wildcards with PathValue.
//
// # Navigation Guard
//
// [GuardMiddleware] runs every GET through router.Decide and answers redirects with 302 Found.
// It may restore a persisted session once per request; it never calls the backend.
//
// # Views
//
// [ViewHandler] renders the user pages as JSON: home, per-platform playlists, lazily paged favorites
// and single playlists. Views trigger dedup fetches and then read the resource cache.
//
// # OAuth Completion
//
// Provider linking runs on the backend, which redirects back with ?oauth=success&platform={tag}.
// [OAuthRefreshMiddleware] reloads connected services when that marker arrives at the view server.
// [OAuthHandler] waits for the same redirect on a temporary server while the CLI links a provider.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
