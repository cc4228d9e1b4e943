// Package cache implements the per-session resource cache.
//
// Each slot is addressed by a [models.CacheKey] and moves through the states
// Empty → Loading → Populated (or Error), and Populated → Refreshing → Populated on a forced reload.
// [ResourceCache.Begin] is the dedup gate: it admits at most one fetch per key.
//
// The cache also owns the session epoch. Writes carry the epoch captured by Begin and are
// dropped once [ResourceCache.Reset] has moved on, so results of requests started before a
// logout or login never leak into the next session.
package cache
