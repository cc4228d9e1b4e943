package cache

import (
	"errors"
	"fmt"
	"testing"

	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/shared"
	"github.com/google/go-cmp/cmp"
)

func tracks(prefix string, n int) []models.Track {
	out := make([]models.Track, n)
	for i := range out {
		out[i] = models.Track{ID: models.ID(fmt.Sprintf("%s%d", prefix, i)), Title: fmt.Sprintf("%s %d", prefix, i)}
	}
	return out
}

func TestBegin(t *testing.T) {
	key := models.Key(models.Spotify, models.Playlists)

	tests := []struct {
		name      string
		prepare   func(c *ResourceCache)
		force     bool
		wantOK    bool
		wantState models.EntryState
	}{
		{name: "empty starts loading", prepare: func(c *ResourceCache) {}, wantOK: true, wantState: models.Loading},
		{
			name: "in flight refuses",
			prepare: func(c *ResourceCache) {
				c.Begin(key, false)
			},
			wantOK: false, wantState: models.Loading,
		},
		{
			name: "populated refuses without force",
			prepare: func(c *ResourceCache) {
				e, _ := c.Begin(key, false)
				c.SetPlaylists(e, models.Spotify, nil)
			},
			wantOK: false, wantState: models.Populated,
		},
		{
			name: "populated refreshes with force",
			prepare: func(c *ResourceCache) {
				e, _ := c.Begin(key, false)
				c.SetPlaylists(e, models.Spotify, nil)
			},
			force: true, wantOK: true, wantState: models.Refreshing,
		},
		{
			name: "error retries",
			prepare: func(c *ResourceCache) {
				e, _ := c.Begin(key, false)
				c.Fail(e, key, "boom")
			},
			wantOK: true, wantState: models.Loading,
		},
		{
			name: "refreshing refuses even with force",
			prepare: func(c *ResourceCache) {
				e, _ := c.Begin(key, false)
				c.SetPlaylists(e, models.Spotify, nil)
				c.Begin(key, true)
			},
			force: true, wantOK: false, wantState: models.Refreshing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(nil)
			tt.prepare(c)

			_, ok := c.Begin(key, tt.force)
			if ok != tt.wantOK {
				t.Errorf("Begin() ok = %v, want %v", ok, tt.wantOK)
			}
			if got := c.Entry(key).State; got != tt.wantState {
				t.Errorf("state = %v, want %v", got, tt.wantState)
			}
		})
	}
}

func TestFavoritesPagination(t *testing.T) {
	key := models.Key(models.Spotify, models.Favorites)

	t.Run("Contiguous Pages Concatenate In Order", func(t *testing.T) {
		c := New(nil)
		pages := [][]models.Track{tracks("a", 3), tracks("b", 2), tracks("c", 4)}

		offset := 0
		var want []models.Track
		for _, page := range pages {
			e, ok := c.Begin(key, true)
			if !ok {
				t.Fatalf("Begin refused at offset %d", offset)
			}
			if err := c.MergeFavoritesPage(e, models.Spotify, offset, Page{Tracks: page, TotalCount: 9}); err != nil {
				t.Fatalf("merge at %d: %v", offset, err)
			}
			offset += len(page)
			want = append(want, page...)
		}

		fav, ok := c.Favorites(models.Spotify)
		if !ok {
			t.Fatal("expected favorites")
		}
		if diff := cmp.Diff(want, fav.Tracks); diff != "" {
			t.Errorf("tracks mismatch (-want +got):\n%s", diff)
		}
		if fav.LoadedOffset != len(fav.Tracks) || fav.LoadedOffset != 9 {
			t.Errorf("loaded offset = %d, tracks = %d", fav.LoadedOffset, len(fav.Tracks))
		}
		if fav.HasMore() {
			t.Error("expected no more pages")
		}
	})

	t.Run("Offset Zero Replaces", func(t *testing.T) {
		c := New(nil)
		e := c.Epoch()
		c.MergeFavoritesPage(e, models.Spotify, 0, Page{Tracks: tracks("a", 5), TotalCount: 5})
		c.MergeFavoritesPage(e, models.Spotify, 0, Page{Tracks: tracks("z", 2), TotalCount: 2, ExternalPlaylistID: "LM"})

		fav, _ := c.Favorites(models.Spotify)
		if diff := cmp.Diff(tracks("z", 2), fav.Tracks); diff != "" {
			t.Errorf("tracks mismatch (-want +got):\n%s", diff)
		}
		if fav.ExternalPlaylistID != "LM" {
			t.Errorf("expected external playlist id LM, got %q", fav.ExternalPlaylistID)
		}
	})

	t.Run("Out Of Order Page Is Rejected", func(t *testing.T) {
		c := New(nil)
		e := c.Epoch()
		c.MergeFavoritesPage(e, models.Spotify, 0, Page{Tracks: tracks("a", 20), TotalCount: 100})
		before, _ := c.Favorites(models.Spotify)

		for _, offset := range []int{10, 40} {
			if err := c.CheckPage(models.Spotify, offset); !errors.Is(err, shared.ErrOutOfOrderPage) {
				t.Errorf("CheckPage(%d) = %v, want ErrOutOfOrderPage", offset, err)
			}
			err := c.MergeFavoritesPage(e, models.Spotify, offset, Page{Tracks: tracks("x", 5), TotalCount: 100})
			if !errors.Is(err, shared.ErrOutOfOrderPage) {
				t.Errorf("MergeFavoritesPage(%d) = %v, want ErrOutOfOrderPage", offset, err)
			}
		}

		after, _ := c.Favorites(models.Spotify)
		if diff := cmp.Diff(before, after); diff != "" {
			t.Errorf("favorites changed (-before +after):\n%s", diff)
		}
	})

	t.Run("Nonzero Offset Without Data", func(t *testing.T) {
		c := New(nil)
		if err := c.CheckPage(models.YandexMusic, 20); !errors.Is(err, shared.ErrOutOfOrderPage) {
			t.Errorf("expected ErrOutOfOrderPage, got %v", err)
		}
		if err := c.CheckPage(models.YandexMusic, -1); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Failure Keeps Loaded Pages", func(t *testing.T) {
		c := New(nil)
		e, _ := c.Begin(key, false)
		c.MergeFavoritesPage(e, models.Spotify, 0, Page{Tracks: tracks("a", 3), TotalCount: 10})
		e, _ = c.Begin(key, true)
		c.Fail(e, key, "timeout")

		entry := c.Entry(key)
		if entry.State != models.Error || entry.Err != "timeout" {
			t.Errorf("unexpected entry %+v", entry)
		}
		fav, _ := c.Favorites(models.Spotify)
		if len(fav.Tracks) != 3 {
			t.Errorf("expected 3 loaded tracks to survive, got %d", len(fav.Tracks))
		}
	})
}

func TestMergeCounts(t *testing.T) {
	c := New(nil)
	e := c.Epoch()
	c.SetPlaylists(e, models.Spotify, []models.Playlist{{ID: "1", Title: "One"}, {ID: "2", Title: "Two"}})

	if err := c.MergeCounts(e, models.Spotify, map[string]int{"1": 10}); err != nil {
		t.Fatalf("MergeCounts: %v", err)
	}

	got := c.Playlists(models.Spotify)
	want := []models.Playlist{
		{ID: "1", Title: "One", TrackCount: models.IntPtr(10)},
		{ID: "2", Title: "Two"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("playlists mismatch (-want +got):\n%s", diff)
	}
}

func TestPlaylistTracks(t *testing.T) {
	c := New(nil)
	e := c.Epoch()
	c.SetPlaylists(e, models.Spotify, []models.Playlist{{ID: "1", Title: "One"}})

	e, ok := c.BeginTracks(models.Spotify, "1")
	if !ok {
		t.Fatal("expected BeginTracks to succeed")
	}
	if _, ok := c.BeginTracks(models.Spotify, "1"); ok {
		t.Error("expected duplicate hydration to be refused")
	}

	if err := c.SetPlaylistTracks(e, models.Spotify, "1", tracks("t", 2), nil); err != nil {
		t.Fatalf("SetPlaylistTracks: %v", err)
	}
	pl, _ := c.Playlist(models.Spotify, "1")
	if len(pl.Tracks) != 2 || models.FormatCount(pl.TrackCount) != "2" {
		t.Errorf("unexpected playlist %+v", pl)
	}
	if _, ok := c.BeginTracks(models.Spotify, "1"); ok {
		t.Error("expected hydrated playlist to be skipped")
	}

	e, _ = c.BeginTracks(models.Spotify, "missing")
	if err := c.SetPlaylistTracks(e, models.Spotify, "missing", nil, nil); !errors.Is(err, shared.ErrPlaylistNotFound) {
		t.Errorf("expected ErrPlaylistNotFound, got %v", err)
	}
}

func TestEpoch(t *testing.T) {
	t.Run("Reset Clears Everything", func(t *testing.T) {
		c := New(nil)
		e := c.Epoch()
		c.SetPlaylists(e, models.Spotify, []models.Playlist{{ID: "1"}})
		c.SetServices(e, []models.ConnectedService{{Platform: models.Spotify, Status: "connected"}})
		c.MergeFavoritesPage(e, models.Spotify, 0, Page{Tracks: tracks("a", 1), TotalCount: 1})
		c.SetErr("boom")

		if next := c.Reset(); next != e+1 {
			t.Errorf("expected epoch %d, got %d", e+1, next)
		}
		if len(c.Keys()) != 0 || c.Services() != nil || c.Playlists(models.Spotify) != nil || c.Err() != "" {
			t.Error("expected an empty cache after Reset")
		}
		if _, ok := c.Favorites(models.Spotify); ok {
			t.Error("expected favorites to be gone")
		}
	})

	t.Run("Stale Writes Are Dropped", func(t *testing.T) {
		c := New(nil)
		key := models.Key(models.Spotify, models.Playlists)
		stale, _ := c.Begin(key, false)
		c.Reset()

		writes := map[string]error{
			"playlists": c.SetPlaylists(stale, models.Spotify, []models.Playlist{{ID: "1"}}),
			"services":  c.SetServices(stale, nil),
			"favorites": c.MergeFavoritesPage(stale, models.Spotify, 0, Page{Tracks: tracks("a", 1)}),
			"fail":      c.Fail(stale, key, "late"),
			"counts":    c.MergeCounts(stale, models.Spotify, map[string]int{"1": 1}),
		}
		for name, err := range writes {
			if !errors.Is(err, shared.ErrStaleEpoch) {
				t.Errorf("%s: expected ErrStaleEpoch, got %v", name, err)
			}
		}
		if len(c.Keys()) != 0 {
			t.Errorf("expected no slots, got %v", c.Keys())
		}
	})
}

func TestRelease(t *testing.T) {
	c := New(nil)
	key := models.Key(models.Spotify, models.Favorites)

	e, _ := c.Begin(key, false)
	c.Release(e, key)
	if got := c.Entry(key).State; got != models.Empty {
		t.Errorf("expected Empty, got %v", got)
	}

	e, _ = c.Begin(key, false)
	c.MergeFavoritesPage(e, models.Spotify, 0, Page{Tracks: tracks("a", 1), TotalCount: 2})
	e, _ = c.Begin(key, true)
	c.Release(e, key)
	if got := c.Entry(key).State; got != models.Populated {
		t.Errorf("expected Populated, got %v", got)
	}

	t.Run("Error With Data Stays Error", func(t *testing.T) {
		c := New(nil)
		e, _ := c.Begin(key, false)
		c.MergeFavoritesPage(e, models.Spotify, 0, Page{Tracks: tracks("a", 2), TotalCount: 6})
		e, _ = c.Begin(key, true)
		c.Fail(e, key, "page 2 failed")

		e, ok := c.Begin(key, false)
		if !ok {
			t.Fatal("expected Begin to retry an errored slot")
		}
		if err := c.MergeFavoritesPage(e, models.Spotify, 5, Page{Tracks: tracks("x", 1)}); !errors.Is(err, shared.ErrOutOfOrderPage) {
			t.Fatalf("expected ErrOutOfOrderPage, got %v", err)
		}
		c.Release(e, key)

		entry := c.Entry(key)
		if entry.State != models.Error || entry.Err != "page 2 failed" {
			t.Errorf("entry = %+v, want error with message kept", entry)
		}
		if fav, _ := c.Favorites(models.Spotify); len(fav.Tracks) != 2 {
			t.Errorf("expected loaded tracks kept, got %d", len(fav.Tracks))
		}
	})
}

func TestFavoritesTotalFallback(t *testing.T) {
	key := models.Key(models.Spotify, models.Favorites)
	tests := []struct {
		name  string
		total int
		want  int
	}{
		{name: "missing total", total: 0, want: 3},
		{name: "total below loaded", total: 2, want: 3},
		{name: "total above loaded", total: 10, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(nil)
			e, _ := c.Begin(key, false)
			if err := c.MergeFavoritesPage(e, models.Spotify, 0, Page{Tracks: tracks("a", 3), TotalCount: tt.total}); err != nil {
				t.Fatalf("merge: %v", err)
			}
			fav, _ := c.Favorites(models.Spotify)
			if fav.TotalCount != tt.want {
				t.Errorf("TotalCount = %d, want %d", fav.TotalCount, tt.want)
			}
			if got := fav.HasMore(); got != (tt.want > 3) {
				t.Errorf("HasMore = %v", got)
			}
		})
	}
}

func TestEvictAndKeys(t *testing.T) {
	c := New(nil)
	e := c.Epoch()
	c.SetPlaylists(e, models.YandexMusic, nil)
	c.SetPlaylists(e, models.Spotify, nil)
	c.MergeFavoritesPage(e, models.Spotify, 0, Page{})
	c.SetServices(e, nil)

	want := []models.CacheKey{
		models.Key(models.Spotify, models.Playlists),
		models.Key(models.Spotify, models.Favorites),
		models.Key(models.YandexMusic, models.Playlists),
		models.ServicesKey(),
	}
	if diff := cmp.Diff(want, c.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	c.Evict(models.Spotify)
	want = []models.CacheKey{models.Key(models.YandexMusic, models.Playlists), models.ServicesKey()}
	if diff := cmp.Diff(want, c.Keys()); diff != "" {
		t.Errorf("keys after evict mismatch (-want +got):\n%s", diff)
	}
}
