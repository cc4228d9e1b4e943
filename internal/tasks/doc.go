// Package tasks drives backend fetches into the resource cache with real-time progress reporting.
//
// # Core Operations
//
// [Orchestrator] exposes the fetch operations the shells call:
//
//  1. [Orchestrator.FetchIfAbsent] / [Orchestrator.Refresh] : load one cache slot, at most one request in flight per slot
//  2. [Orchestrator.FetchPage] : lazy, contiguous favorites pagination
//  3. [Orchestrator.HydrateCounts] : one batched track-count request per platform
//  4. [Orchestrator.FetchPlaylistTracks] : on-demand playlist hydration
//  5. [Orchestrator.FanOut] / [Orchestrator.Hydrate] : post-login loading of every configured platform
//
// # Background Refresh
//
// Hydrate schedules a single delayed refresh on the [Scheduler]. Scheduled work is grouped by
// session epoch; [Orchestrator.Cancel] stops the epoch's timers and cancels its in-flight requests.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
