// Package repositories implements durable key-value storage for the client's persisted state.
//
// The session store keeps two keys (the serialized identity and the authenticated flag) that must survive restarts.
// Each repository saves and removes a set of keys atomically so a reader never observes one key without the other.
//
// Implementations:
//   - [StateRepository] : SQLite table managed by the shared migrations (default)
//   - [RedisStateRepository] : Redis keys under a configurable prefix
//   - [MemoryStateRepository] : process-local map for tests and ephemeral runs
//
// [Open] picks an implementation from [shared.StorageConfig].
package repositories
