package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/orbitune/internal/shared"
)

// Platform identifies which linked provider a resource belongs to.
type Platform int

const (
	PlatformUnknown Platform = iota
	Spotify
	YouTubeMusic
	YandexMusic
	// Orbitune is the application's own tag. Connected services are keyed under it.
	Orbitune
)

type platformNames struct {
	name string // canonical name
	wire string // backend tag
	page string // route segment
}

var platformTable = map[Platform]platformNames{
	Spotify:      {name: "spotify", wire: "spotify", page: "spotify"},
	YouTubeMusic: {name: "youtubemusic", wire: "youtube", page: "youtube-music"},
	YandexMusic:  {name: "yandexmusic", wire: "yandex", page: "yandex-music"},
	Orbitune:     {name: "orbitune", wire: "orbitune", page: "orbitune"},
}

// wireAliases are extra backend tags for a platform. The OAuth flow for YouTube Music
// records the linked account as "google".
var wireAliases = map[string]Platform{"google": YouTubeMusic}

// Platforms lists every known platform in display order.
func Platforms() []Platform {
	return []Platform{Spotify, YouTubeMusic, YandexMusic, Orbitune}
}

// ProviderPlatforms lists the external providers a user can link.
func ProviderPlatforms() []Platform {
	return []Platform{Spotify, YouTubeMusic, YandexMusic}
}

func (p Platform) String() string {
	if n, ok := platformTable[p]; ok {
		return n.name
	}
	return "unknown"
}

// Wire returns the tag the backend uses for this platform.
func (p Platform) Wire() string { return platformTable[p].wire }

// Page returns the route segment of this platform's view.
func (p Platform) Page() string { return platformTable[p].page }

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	_, ok := platformTable[p]
	return ok
}

// ParsePlatform accepts a canonical name, backend tag or page segment, case-insensitively.
func ParsePlatform(s string) (Platform, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PlatformUnknown, fmt.Errorf("%w: empty platform", shared.ErrMissingArgument)
	}
	for p, n := range platformTable {
		if s == n.name || s == n.wire || s == n.page {
			return p, nil
		}
	}
	if p, ok := wireAliases[s]; ok {
		return p, nil
	}
	return PlatformUnknown, fmt.Errorf("%w: %q", shared.ErrUnknownPlatform, s)
}

// ParsePlatforms parses a list of platform names, failing on the first unknown entry.
func ParsePlatforms(names []string) ([]Platform, error) {
	out := make([]Platform, 0, len(names))
	for _, n := range names {
		p, err := ParsePlatform(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// MarshalText encodes the platform using its backend tag.
func (p Platform) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", shared.ErrUnknownPlatform, int(p))
	}
	return []byte(p.Wire()), nil
}

// UnmarshalText decodes any accepted spelling.
func (p *Platform) UnmarshalText(b []byte) error {
	parsed, err := ParsePlatform(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ResourceKind names a category of cached resource.
type ResourceKind int

const (
	Playlists ResourceKind = iota
	Favorites
	ConnectedServices
)

func (k ResourceKind) String() string {
	switch k {
	case Playlists:
		return "playlists"
	case Favorites:
		return "favorites"
	case ConnectedServices:
		return "connectedServices"
	default:
		return ""
	}
}

// CacheKey names one cache slot.
type CacheKey struct {
	Platform Platform
	Kind     ResourceKind
}

func (k CacheKey) String() string {
	return k.Platform.String() + "/" + k.Kind.String()
}

// Key builds a [CacheKey].
func Key(p Platform, k ResourceKind) CacheKey {
	return CacheKey{Platform: p, Kind: k}
}

// ServicesKey is the single slot holding the user's connected services.
func ServicesKey() CacheKey {
	return CacheKey{Platform: Orbitune, Kind: ConnectedServices}
}

// EntryState is the load state of a cache slot.
type EntryState int

const (
	Empty EntryState = iota
	Loading
	Populated
	Refreshing
	Error
)

func (s EntryState) String() string {
	switch s {
	case Empty:
		return "empty"
	case Loading:
		return "loading"
	case Populated:
		return "populated"
	case Refreshing:
		return "refreshing"
	case Error:
		return "error"
	default:
		return ""
	}
}

// InFlight reports whether a fetch is running for the slot.
func (s EntryState) InFlight() bool {
	return s == Loading || s == Refreshing
}
