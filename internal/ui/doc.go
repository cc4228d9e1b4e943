// Package ui implements an interactive library browser using bubbletea's Elm architecture.
//
// The browser reads everything it shows from the shared resource cache and asks the
// orchestrator to fill it:
//  1. [PlaylistsView] : the selected platform's playlists with their track counts
//  2. [FavoritesView] : the platform's favorites, loaded a page at a time
//  3. [TracksView] : one playlist's tracks, hydrated on demand
//
// Progress updates from the orchestrator (including background refreshes) flow through a channel
// and trigger a re-render from the cache.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, tab, p/f, m, r, q) with help displayed via charmbracelet/bubbles/help.
package ui
