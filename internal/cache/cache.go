package cache

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/shared"
)

// Entry is the observable load state of one slot.
type Entry struct {
	State     models.EntryState
	Err       string
	UpdatedAt time.Time
}

// Page is one favorites page as delivered by the backend.
type Page struct {
	Tracks             []models.Track
	TotalCount         int
	PlaylistID         string
	ExternalPlaylistID string
}

type slot struct {
	Entry
	resting   models.EntryState // state before the fetch in flight
	playlists []models.Playlist
	favorites *models.FavoritesCollection
	services  []models.ConnectedService
}

// ResourceCache holds per-(platform, kind) collections for the current session.
//
// Every write names the epoch it was started under. Reset advances the epoch, after which
// commits from earlier epochs are dropped with [shared.ErrStaleEpoch].
type ResourceCache struct {
	mu      sync.Mutex
	epoch   uint64
	entries map[models.CacheKey]*slot
	tracks  map[string]struct{} // playlist hydrations in flight
	err     string
	logger  *log.Logger
	now     func() time.Time
}

// New creates an empty cache at epoch 0.
func New(logger *log.Logger) *ResourceCache {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ResourceCache{
		entries: make(map[models.CacheKey]*slot),
		tracks:  make(map[string]struct{}),
		logger:  logger,
		now:     time.Now,
	}
}

// Epoch returns the current session epoch.
func (c *ResourceCache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Reset empties every slot, clears the error field and starts a new epoch.
func (c *ResourceCache) Reset() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries = make(map[models.CacheKey]*slot)
	c.tracks = make(map[string]struct{})
	c.err = ""
	c.logger.Debug("cache reset", "epoch", c.epoch)
	return c.epoch
}

// slot returns the entry for key, creating it lazily. Callers hold mu.
func (c *ResourceCache) slot(key models.CacheKey) *slot {
	s, ok := c.entries[key]
	if !ok {
		s = &slot{}
		c.entries[key] = s
	}
	return s
}

// current reports whether epoch is still live. Callers hold mu.
func (c *ResourceCache) current(epoch uint64, op string, key models.CacheKey) error {
	if epoch == c.epoch {
		return nil
	}
	c.logger.Debug("dropping stale write", "op", op, "key", key, "epoch", epoch, "current", c.epoch)
	return fmt.Errorf("%w: %s %s", shared.ErrStaleEpoch, op, key)
}

// Begin claims key for a fetch.
//
// It fails when a fetch is already in flight, or when the slot is populated and force is false.
// On success the slot moves to Loading (or Refreshing when it held data) and the live epoch is returned.
func (c *ResourceCache) Begin(key models.CacheKey, force bool) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.slot(key)
	if s.State.InFlight() {
		return c.epoch, false
	}
	s.resting = s.State
	switch s.State {
	case models.Populated:
		if !force {
			return c.epoch, false
		}
		s.State = models.Refreshing
	default:
		s.State = models.Loading
	}
	return c.epoch, true
}

func (c *ResourceCache) populate(s *slot) {
	s.State = models.Populated
	s.Err = ""
	s.UpdatedAt = c.now()
}

// SetPlaylists replaces the playlist list of p.
func (c *ResourceCache) SetPlaylists(epoch uint64, p models.Platform, playlists []models.Playlist) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := models.Key(p, models.Playlists)
	if err := c.current(epoch, "set playlists", key); err != nil {
		return err
	}

	s := c.slot(key)
	s.playlists = make([]models.Playlist, len(playlists))
	for i, pl := range playlists {
		s.playlists[i] = pl.Clone()
	}
	c.populate(s)
	return nil
}

// SetServices replaces the connected services list.
func (c *ResourceCache) SetServices(epoch uint64, services []models.ConnectedService) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := models.ServicesKey()
	if err := c.current(epoch, "set services", key); err != nil {
		return err
	}

	s := c.slot(key)
	s.services = append([]models.ConnectedService{}, services...)
	c.populate(s)
	return nil
}

// CheckPage reports whether offset may be requested for p's favorites.
// Offset 0 always may; any other offset must equal the loaded offset.
func (c *ResourceCache) CheckPage(p models.Platform, offset int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkPage(p, offset)
}

func (c *ResourceCache) checkPage(p models.Platform, offset int) error {
	if offset < 0 {
		return fmt.Errorf("%w: negative offset %d", shared.ErrInvalidArgument, offset)
	}
	if offset == 0 {
		return nil
	}
	loaded := 0
	if s, ok := c.entries[models.Key(p, models.Favorites)]; ok && s.favorites != nil {
		loaded = s.favorites.LoadedOffset
	}
	if offset != loaded {
		return fmt.Errorf("%w: requested %d, loaded %d", shared.ErrOutOfOrderPage, offset, loaded)
	}
	return nil
}

// MergeFavoritesPage commits a favorites page fetched at offset.
//
// Offset 0 replaces the collection. Otherwise the page is appended only when offset still equals
// the loaded offset; a mismatch leaves the collection untouched.
func (c *ResourceCache) MergeFavoritesPage(epoch uint64, p models.Platform, offset int, page Page) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := models.Key(p, models.Favorites)
	if err := c.current(epoch, "merge favorites", key); err != nil {
		return err
	}
	if err := c.checkPage(p, offset); err != nil {
		return err
	}

	s := c.slot(key)
	if offset == 0 || s.favorites == nil {
		s.favorites = &models.FavoritesCollection{Platform: p}
		s.favorites.Tracks = append([]models.Track{}, page.Tracks...)
	} else {
		s.favorites.Tracks = append(s.favorites.Tracks, page.Tracks...)
	}

	f := s.favorites
	f.LoadedOffset = len(f.Tracks)
	// A page without a total reports what is loaded.
	f.TotalCount = max(page.TotalCount, len(f.Tracks))
	if page.PlaylistID != "" {
		f.PlaylistID = page.PlaylistID
	}
	if page.ExternalPlaylistID != "" {
		f.ExternalPlaylistID = page.ExternalPlaylistID
	}
	c.populate(s)
	return nil
}

// Fail moves key to Error with msg. Data already held stays readable.
func (c *ResourceCache) Fail(epoch uint64, key models.CacheKey, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.current(epoch, "fail", key); err != nil {
		return err
	}
	s := c.slot(key)
	s.State = models.Error
	s.Err = msg
	s.UpdatedAt = c.now()
	return nil
}

// Release returns an in-flight slot to the state it had before [ResourceCache.Begin],
// without recording a result.
func (c *ResourceCache) Release(epoch uint64, key models.CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current(epoch, "release", key) != nil {
		return
	}
	if s := c.slot(key); s.State.InFlight() {
		s.State = s.resting
	}
}

// MergeCounts sets TrackCount on the playlists of p whose id appears in counts.
// Playlists absent from counts keep their previous value.
func (c *ResourceCache) MergeCounts(epoch uint64, p models.Platform, counts map[string]int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := models.Key(p, models.Playlists)
	if err := c.current(epoch, "merge counts", key); err != nil {
		return err
	}
	s, ok := c.entries[key]
	if !ok {
		return nil
	}
	for i := range s.playlists {
		if n, ok := counts[s.playlists[i].ID.String()]; ok {
			s.playlists[i].TrackCount = models.IntPtr(n)
		}
	}
	return nil
}

func tracksKey(p models.Platform, id string) string {
	return p.String() + "/" + id
}

// BeginTracks claims the track hydration of one playlist. It fails when the playlist already
// holds tracks or a hydration is in flight.
func (c *ResourceCache) BeginTracks(p models.Platform, playlistID string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.entries[models.Key(p, models.Playlists)]; ok {
		for _, pl := range s.playlists {
			if pl.ID.String() == playlistID && pl.HasTracks() {
				return c.epoch, false
			}
		}
	}
	k := tracksKey(p, playlistID)
	if _, busy := c.tracks[k]; busy {
		return c.epoch, false
	}
	c.tracks[k] = struct{}{}
	return c.epoch, true
}

// SetPlaylistTracks stores hydrated tracks on a cached playlist and ends its hydration.
func (c *ResourceCache) SetPlaylistTracks(epoch uint64, p models.Platform, playlistID string, tracks []models.Track, count *int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := models.Key(p, models.Playlists)
	if err := c.current(epoch, "set playlist tracks", key); err != nil {
		return err
	}
	delete(c.tracks, tracksKey(p, playlistID))

	s, ok := c.entries[key]
	if ok {
		for i := range s.playlists {
			pl := &s.playlists[i]
			if pl.ID.String() != playlistID {
				continue
			}
			pl.Tracks = append([]models.Track{}, tracks...)
			if count != nil {
				pl.TrackCount = models.IntPtr(*count)
			} else if pl.TrackCount == nil {
				pl.TrackCount = models.IntPtr(len(tracks))
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s on %s", shared.ErrPlaylistNotFound, playlistID, p)
}

// EndTracks abandons a playlist hydration claimed with BeginTracks.
func (c *ResourceCache) EndTracks(epoch uint64, p models.Platform, playlistID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch == c.epoch {
		delete(c.tracks, tracksKey(p, playlistID))
	}
}

// Evict drops every slot belonging to p.
func (c *ResourceCache) Evict(p models.Platform) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.Platform == p {
			delete(c.entries, key)
		}
	}
}

// SetErr overwrites the shared error field. An empty message clears it.
func (c *ResourceCache) SetErr(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = msg
}

// Err returns the latest failure not tied to a single slot.
func (c *ResourceCache) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Entry returns the state of key. Untouched keys are Empty.
func (c *ResourceCache) Entry(key models.CacheKey) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.entries[key]; ok {
		return s.Entry
	}
	return Entry{State: models.Empty}
}

// Playlists returns a copy of p's playlists.
func (c *ResourceCache) Playlists(p models.Platform) []models.Playlist {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.entries[models.Key(p, models.Playlists)]
	if !ok {
		return nil
	}
	out := make([]models.Playlist, len(s.playlists))
	for i, pl := range s.playlists {
		out[i] = pl.Clone()
	}
	return out
}

// Playlist returns a copy of one cached playlist.
func (c *ResourceCache) Playlist(p models.Platform, id string) (models.Playlist, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.entries[models.Key(p, models.Playlists)]; ok {
		for _, pl := range s.playlists {
			if pl.ID.String() == id {
				return pl.Clone(), true
			}
		}
	}
	return models.Playlist{}, false
}

// Favorites returns a copy of p's favorites, if any page was loaded.
func (c *ResourceCache) Favorites(p models.Platform) (models.FavoritesCollection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.entries[models.Key(p, models.Favorites)]
	if !ok || s.favorites == nil {
		return models.FavoritesCollection{Platform: p}, false
	}
	return s.favorites.Clone(), true
}

// Services returns a copy of the connected services list.
func (c *ResourceCache) Services() []models.ConnectedService {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.entries[models.ServicesKey()]
	if !ok {
		return nil
	}
	return append([]models.ConnectedService{}, s.services...)
}

// Keys lists every slot that has been touched, ordered by platform then kind.
func (c *ResourceCache) Keys() []models.CacheKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]models.CacheKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Platform != keys[j].Platform {
			return keys[i].Platform < keys[j].Platform
		}
		return keys[i].Kind < keys[j].Kind
	})
	return keys
}
