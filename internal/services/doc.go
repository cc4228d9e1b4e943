// Package services is the HTTP client for the Orbitune backend.
//
// # Transport
//
// [APIService] performs raw requests and returns an [APIResponse]. Every request carries an
// X-Request-ID header and waits on a shared [rate.Limiter].
//
// # Typed client
//
// [Backend] maps the REST contract onto Go types:
//   - POST /auth/login, /auth/register, /auth/logout
//   - GET, DELETE /connected_services and POST /connected_services/sync
//   - GET /playlists, GET /playlists/{id}/tracks, POST /playlists/tracks_count_batch
//   - GET /favorites
//
// Credentials are cookies held by the client's jar. Each call is bounded by the configured timeout.
//
// # Errors
//
// Non-2xx responses become [*APIError], which unwraps to [shared.ErrAPIRequest].
// [ErrorMessage] picks the best human-readable text from any error.
package services
