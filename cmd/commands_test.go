package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/repositories"
	"github.com/desertthunder/orbitune/internal/session"
	"github.com/desertthunder/orbitune/internal/shared"
	tu "github.com/desertthunder/orbitune/internal/testing"
)

type cliHarness struct {
	t       *testing.T
	runner  *Runner
	fake    *tu.FakeBackend
	storage *repositories.MemoryStateRepository
	out     *bytes.Buffer
	config  string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	fake := tu.NewFakeBackend(t)

	cfg := shared.DefaultConfig()
	cfg.Backend.BaseURL = fake.URL
	cfg.Storage.Driver = "memory"
	cfg.Sync.Platforms = []string{"spotify"}
	cfg.Sync.PageSize = 2
	cfg.Sync.RefreshDelay = 0
	cfg.Sync.SyncOnLogin = false

	storage := repositories.NewMemoryStateRepository()
	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Config: cfg, Storage: storage, Output: out, Logger: log.New(io.Discard)})

	return &cliHarness{
		t:       t,
		runner:  runner,
		fake:    fake,
		storage: storage,
		out:     out,
		config:  filepath.Join(t.TempDir(), "missing.toml"),
	}
}

// run executes one CLI invocation and returns its output.
func (h *cliHarness) run(args ...string) (string, error) {
	h.out.Reset()
	argv := append([]string{"orbitune", "--config", h.config}, args...)
	err := newApp(h.runner).Run(context.Background(), argv)
	return h.out.String(), err
}

func (h *cliHarness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("%v failed: %v", args, err)
	}
	return out
}

func (h *cliHarness) serveLibrary(favorites int) {
	h.fake.JSON("POST /auth/login", http.StatusOK, map[string]any{
		"user": map[string]any{"id": 7, "email": "a@b.c", "nickname": "alice"},
	})
	h.fake.JSON("POST /auth/logout", http.StatusOK, nil)
	h.fake.JSON("GET /connected_services", http.StatusOK, []map[string]string{{"platform": "spotify", "status": "connected"}})
	h.fake.JSON("DELETE /connected_services", http.StatusOK, nil)
	h.fake.JSON("POST /connected_services/sync", http.StatusAccepted, nil)
	h.fake.JSON("GET /playlists", http.StatusOK, map[string]any{"playlists": []map[string]any{
		{"id": 1, "title": "One"},
		{"id": 2, "title": "Two"},
	}})
	h.fake.JSON("POST /playlists/tracks_count_batch", http.StatusOK, map[string]any{"counts": map[string]int{"1": 10, "2": 3}})
	h.fake.JSON("GET /playlists/{id}/tracks", http.StatusOK, map[string]any{
		"tracks":       []map[string]any{{"id": "t1", "title": "First", "artist": "A"}, {"id": "t2", "title": "Second", "artist": "B"}},
		"tracks_count": 2,
	})
	h.fake.Handle("GET /favorites", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		page := []models.Track{}
		for i := offset; i < min(offset+limit, favorites); i++ {
			page = append(page, models.Track{ID: models.ID(strconv.Itoa(i)), Title: fmt.Sprintf("Fav %d", i)})
		}
		tu.WriteJSON(w, http.StatusOK, map[string]any{"tracks": page, "tracks_count": favorites})
	})
}

func TestSessionCommands(t *testing.T) {
	t.Run("Login Persists Session And Loads Library", func(t *testing.T) {
		h := newCLIHarness(t)
		h.serveLibrary(3)

		out := h.mustRun("login", "--email", " a@b.c ", "--password", "pw")
		for _, want := range []string{"✓ Logged in as alice", "✓ spotify/playlists", "✓ orbitune/connectedServices"} {
			if !strings.Contains(out, want) {
				t.Errorf("login output missing %q:\n%s", want, out)
			}
		}

		vals, err := h.storage.Load(context.Background(), session.KeyCurrentUser, session.KeyLoggedIn)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if vals[session.KeyLoggedIn] != "true" || !strings.Contains(vals[session.KeyCurrentUser], `"7"`) {
			t.Errorf("unexpected persisted state %v", vals)
		}
	})

	t.Run("Whoami And Logout", func(t *testing.T) {
		h := newCLIHarness(t)
		h.serveLibrary(0)
		h.mustRun("login", "--email", "a@b.c", "--password", "pw")

		out := h.mustRun("whoami")
		if !strings.Contains(out, "User: alice") || !strings.Contains(out, "ID: 7") {
			t.Errorf("unexpected whoami output:\n%s", out)
		}

		if out := h.mustRun("logout"); !strings.Contains(out, "✓ Logged out") {
			t.Errorf("unexpected logout output:\n%s", out)
		}
		if h.fake.Calls("POST /auth/logout") != 1 {
			t.Errorf("expected one server logout, got %d", h.fake.Calls("POST /auth/logout"))
		}
		if out := h.mustRun("whoami"); !strings.Contains(out, "Not logged in") {
			t.Errorf("expected logged out, got:\n%s", out)
		}
	})

	t.Run("Login Failure Returns Backend Message", func(t *testing.T) {
		h := newCLIHarness(t)
		h.fake.JSON("POST /auth/login", http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})

		_, err := h.run("login", "--email", "a@b.c", "--password", "bad")
		var authErr *session.AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected *session.AuthError, got %v", err)
		}
		if authErr.Message != "Invalid credentials" {
			t.Errorf("unexpected message %q", authErr.Message)
		}
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Error("expected ErrAuthFailed in chain")
		}
	})

	t.Run("Library Commands Require Login", func(t *testing.T) {
		h := newCLIHarness(t)
		for _, args := range [][]string{{"playlists"}, {"favorites"}, {"services", "list"}} {
			if _, err := h.run(args...); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("%v: expected ErrNotAuthenticated, got %v", args, err)
			}
		}
		if h.fake.TotalCalls() != 0 {
			t.Errorf("expected no backend calls, got %d", h.fake.TotalCalls())
		}
	})
}

func TestNavigate(t *testing.T) {
	h := newCLIHarness(t)
	h.serveLibrary(0)

	out := h.mustRun("navigate", "/alice/home")
	if strings.TrimSpace(out) != "redirect /auth (user-page)" {
		t.Errorf("unexpected logged-out decision %q", out)
	}

	h.mustRun("login", "--email", "a@b.c", "--password", "pw")

	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"navigate", "/"}, want: "redirect /alice/home (root)"},
		{args: []string{"navigate", "/alice/home"}, want: "allow (user-page)"},
		{args: []string{"navigate", "/auth"}, want: "allow (auth)"},
		{
			args: []string{"navigate", "--query", "oauth=success", "--query", "platform=spotify", "/alice/home"},
			want: "redirect /alice/spotify (oauth-complete)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			out := h.mustRun(tt.args...)
			if strings.TrimSpace(out) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, strings.TrimSpace(out))
			}
		})
	}

	t.Run("Bad Query", func(t *testing.T) {
		if _, err := h.run("navigate", "--query", "oauth", "/"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}

func TestLibraryCommands(t *testing.T) {
	h := newCLIHarness(t)
	h.serveLibrary(5)
	h.mustRun("login", "--email", "a@b.c", "--password", "pw")

	t.Run("Playlists As CSV", func(t *testing.T) {
		out := h.mustRun("playlists", "--platform", "spotify", "--format", "csv")
		for _, want := range []string{"ID,External ID,Title,Tracks", "1,,One,10", "2,,Two,3"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("Unknown Platform", func(t *testing.T) {
		if _, err := h.run("playlists", "--platform", "napster"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("Tracks", func(t *testing.T) {
		out := h.mustRun("tracks", "--platform", "spotify", "--id", "1")
		for _, want := range []string{"Playlist: One", "Tracks: 2", "1. A - First", "2. B - Second"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("Tracks Of Unknown Playlist", func(t *testing.T) {
		_, err := h.run("tracks", "--platform", "spotify", "--id", "404")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Favorites Window Loads Pages In Order", func(t *testing.T) {
		before := h.fake.Calls("GET /favorites")
		out := h.mustRun("favorites", "--platform", "spotify", "--offset", "2", "--limit", "2", "--format", "json")

		var fav models.FavoritesCollection
		if err := json.Unmarshal([]byte(out), &fav); err != nil {
			t.Fatalf("invalid JSON output: %v\n%s", err, out)
		}
		if len(fav.Tracks) != 2 || fav.Tracks[0].ID != "2" || fav.Tracks[1].ID != "3" {
			t.Errorf("unexpected window %+v", fav.Tracks)
		}
		if fav.LoadedOffset != 4 || fav.TotalCount != 5 {
			t.Errorf("expected 4 of 5 loaded, got %d of %d", fav.LoadedOffset, fav.TotalCount)
		}
		if got := h.fake.Calls("GET /favorites") - before; got != 2 {
			t.Errorf("expected 2 page requests, got %d", got)
		}
	})

	t.Run("Favorites Beyond Total", func(t *testing.T) {
		out := h.mustRun("favorites", "--platform", "spotify", "--offset", "10", "--format", "json")
		var fav models.FavoritesCollection
		if err := json.Unmarshal([]byte(out), &fav); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}
		if len(fav.Tracks) != 0 || fav.LoadedOffset != 5 {
			t.Errorf("expected empty window with everything loaded, got %d tracks, %d loaded", len(fav.Tracks), fav.LoadedOffset)
		}
	})

	t.Run("Services", func(t *testing.T) {
		out := h.mustRun("services", "list")
		if !strings.Contains(out, "spotify") || !strings.Contains(out, "connected") {
			t.Errorf("unexpected services output:\n%s", out)
		}

		out = h.mustRun("services", "disconnect", "--platform", "spotify")
		if !strings.Contains(out, "✓ Disconnected spotify") {
			t.Errorf("unexpected disconnect output:\n%s", out)
		}
		if h.fake.Calls("DELETE /connected_services") != 1 {
			t.Error("expected one disconnect call")
		}

		if out := h.mustRun("services", "sync"); !strings.Contains(out, "✓ Sync started") {
			t.Errorf("unexpected sync output:\n%s", out)
		}
	})

	t.Run("Orbitune Is Not A Provider", func(t *testing.T) {
		if _, err := h.run("services", "disconnect", "--platform", "orbitune"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: out, Logger: log.New(io.Discard)})
	if err := newApp(runner).Run(context.Background(), []string{"orbitune", "--config", "config.toml", "setup"}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, filepath.Join(dir, "config.toml"))
	if !strings.Contains(tu.MustReadFile(t, filepath.Join(dir, "config.toml")), "[backend]") {
		t.Error("expected config written from template")
	}
	tu.AssertFileExists(t, filepath.Join(dir, "orbitune.db"))
	if !strings.Contains(out.String(), "✓ Setup complete") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}
