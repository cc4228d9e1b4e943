package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/desertthunder/orbitune/internal/shared"
)

func TestParsePlatform(t *testing.T) {
	tc := []struct {
		in      string
		want    Platform
		wantErr error
	}{
		{in: "spotify", want: Spotify},
		{in: "youtube", want: YouTubeMusic},
		{in: "youtubemusic", want: YouTubeMusic},
		{in: "youtube-music", want: YouTubeMusic},
		{in: "Yandex", want: YandexMusic},
		{in: " yandex-music ", want: YandexMusic},
		{in: "orbitune", want: Orbitune},
		{in: "google", want: YouTubeMusic},
		{in: "", wantErr: shared.ErrMissingArgument},
		{in: "tidal", wantErr: shared.ErrUnknownPlatform},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePlatform(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ParsePlatform(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePlatform(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePlatform(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPlatformNames(t *testing.T) {
	if YouTubeMusic.Wire() != "youtube" {
		t.Errorf("expected wire tag youtube, got %s", YouTubeMusic.Wire())
	}
	if YandexMusic.Page() != "yandex-music" {
		t.Errorf("expected page yandex-music, got %s", YandexMusic.Page())
	}
	if PlatformUnknown.Valid() {
		t.Error("unknown platform should not be valid")
	}
	if ServicesKey().String() != "orbitune/connectedServices" {
		t.Errorf("unexpected services key %s", ServicesKey())
	}
}

func TestPlatformJSON(t *testing.T) {
	var svc ConnectedService
	if err := json.Unmarshal([]byte(`{"platform":"yandex","status":"active"}`), &svc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if svc.Platform != YandexMusic || svc.Status != "active" {
		t.Errorf("unexpected service %+v", svc)
	}

	out, err := json.Marshal(svc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != `{"platform":"yandex","status":"active"}` {
		t.Errorf("unexpected encoding %s", out)
	}
}

func TestIDUnmarshal(t *testing.T) {
	var pl Playlist
	if err := json.Unmarshal([]byte(`{"id": 42, "external_id": "abc", "title": "Mix"}`), &pl); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if pl.ID != "42" {
		t.Errorf("expected numeric id to decode as \"42\", got %q", pl.ID)
	}
	if pl.TrackCount != nil {
		t.Error("missing tracks_number must stay unset")
	}

	if err := json.Unmarshal([]byte(`{"id": "x-1", "title": "Mix", "tracks_number": 0}`), &pl); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if pl.ID != "x-1" {
		t.Errorf("expected string id x-1, got %q", pl.ID)
	}
	if pl.TrackCount == nil || *pl.TrackCount != 0 {
		t.Error("explicit zero count must be kept")
	}
}

func TestSessionHandle(t *testing.T) {
	s := NewSession(User{ID: "7", Nickname: "alice", DisplayName: "Alice A."})
	if s.Handle() != "alice" {
		t.Errorf("expected nickname handle, got %s", s.Handle())
	}
	if !s.IsAuthenticated {
		t.Error("session with id should be authenticated")
	}

	s = NewSession(User{ID: "7"})
	if s.Handle() != "7" {
		t.Errorf("expected id fallback, got %s", s.Handle())
	}
}

func TestClone(t *testing.T) {
	pl := Playlist{ID: "1", TrackCount: IntPtr(3), Tracks: []Track{{ID: "t1"}}}
	c := pl.Clone()
	*c.TrackCount = 9
	c.Tracks[0].Title = "changed"
	if *pl.TrackCount != 3 || pl.Tracks[0].Title != "" {
		t.Error("clone must not alias the original")
	}
}
