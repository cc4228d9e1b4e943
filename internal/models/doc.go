// Package models defines the domain types shared by the Orbitune client core.
//
// Identity:
//   - [Session] : the authenticated identity owned by the session store
//   - [User] : the identity record returned by the backend
//
// Addressing:
//   - [Platform] : linked provider tag (Spotify, YouTube Music, Yandex Music, Orbitune)
//   - [ResourceKind] : playlists, favorites or connected services
//   - [CacheKey] : (Platform, ResourceKind) pair naming one cache slot
//
// Resources:
//   - [Playlist], [Track], [FavoritesCollection], [ConnectedService]
//
// [EntryState] is the load state of a single cache slot.
package models
