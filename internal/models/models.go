// package models defines the data model for the Orbitune client
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a backend identifier. The backend emits integer ids, the client treats them as opaque strings.
type ID string

// UnmarshalJSON accepts both JSON strings and numbers.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", b, err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// User is the identity record returned by the backend auth endpoints.
type User struct {
	ID          ID     `json:"id"`
	Email       string `json:"email,omitempty"`
	Nickname    string `json:"nickname,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Session is the client's view of the authenticated identity.
type Session struct {
	UserID          string `json:"user_id"`
	DisplayName     string `json:"display_name,omitempty"`
	Email           string `json:"email,omitempty"`
	IsAuthenticated bool   `json:"-"`
}

// NewSession builds an authenticated session from a backend user, preferring the nickname as display name.
func NewSession(u User) Session {
	name := u.Nickname
	if name == "" {
		name = u.DisplayName
	}
	return Session{
		UserID:          u.ID.String(),
		DisplayName:     name,
		Email:           u.Email,
		IsAuthenticated: u.ID != "",
	}
}

// Handle returns the human-readable name used in routes, falling back to the raw identifier.
func (s Session) Handle() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.UserID
}

// Track is a single song as returned by the backend.
type Track struct {
	ID         ID     `json:"id"`
	ExternalID string `json:"external_id,omitempty"`
	Title      string `json:"title"`
	Artist     string `json:"artist,omitempty"`
	Album      string `json:"album,omitempty"`
	Duration   int    `json:"duration,omitempty"` // seconds
	CoverURL   string `json:"cover_url,omitempty"`
}

// Playlist is a user playlist on one platform.
//
// TrackCount is nil when the count is unknown. Tracks is nil until hydrated.
type Playlist struct {
	ID          ID      `json:"id"`
	ExternalID  string  `json:"external_id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	TrackCount  *int    `json:"tracks_number,omitempty"`
	Tracks      []Track `json:"tracks,omitempty"`
}

// HasTracks reports whether the playlist's tracks were hydrated.
func (p Playlist) HasTracks() bool {
	return len(p.Tracks) > 0
}

// Clone returns a copy that shares no slices or pointers with p.
func (p Playlist) Clone() Playlist {
	out := p
	if p.TrackCount != nil {
		n := *p.TrackCount
		out.TrackCount = &n
	}
	if p.Tracks != nil {
		out.Tracks = append([]Track(nil), p.Tracks...)
	}
	return out
}

// FavoritesCollection is the lazily paged list of a user's liked tracks on one platform.
//
// len(Tracks) == LoadedOffset after every completed page load.
type FavoritesCollection struct {
	Platform           Platform `json:"platform"`
	Tracks             []Track  `json:"tracks"`
	TotalCount         int      `json:"total_count"`
	LoadedOffset       int      `json:"loaded_offset"`
	PlaylistID         string   `json:"playlist_id,omitempty"`
	ExternalPlaylistID string   `json:"external_playlist_id,omitempty"`
}

// HasMore reports whether the backend holds more favorites than are loaded.
func (f FavoritesCollection) HasMore() bool {
	return f.LoadedOffset < f.TotalCount
}

// Clone returns a copy with its own track slice.
func (f FavoritesCollection) Clone() FavoritesCollection {
	out := f
	out.Tracks = append([]Track(nil), f.Tracks...)
	return out
}

// ConnectedService is one linked provider.
type ConnectedService struct {
	Platform Platform `json:"platform"`
	Status   string   `json:"status"`
}

// IntPtr is a convenience for optional counts.
func IntPtr(n int) *int { return &n }

// FormatCount renders an optional count, "?" when unknown.
func FormatCount(n *int) string {
	if n == nil {
		return "?"
	}
	return strconv.Itoa(*n)
}
