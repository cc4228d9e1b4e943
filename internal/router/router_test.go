package router

import (
	"net/url"
	"testing"

	"github.com/desertthunder/orbitune/internal/models"
)

var alice = models.Session{UserID: "u1", DisplayName: "alice", IsAuthenticated: true}

type countingRestorer struct {
	sess  models.Session
	ok    bool
	calls int
}

func (r *countingRestorer) restore() (models.Session, bool) {
	r.calls++
	return r.sess, r.ok
}

func q(pairs ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Set(pairs[i], pairs[i+1])
	}
	return v
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name         string
		target       Target
		session      models.Session
		restorable   *models.Session
		want         string // empty means allow
		wantRule     string
		wantRestores int
	}{
		{
			name:   "user home logged out with nothing restorable",
			target: Target{Path: "/alice/home"}, want: "/auth", wantRule: "user-page", wantRestores: 1,
		},
		{
			name:   "user home restored",
			target: Target{Path: "/alice/home"}, restorable: &alice, wantRule: "user-page", wantRestores: 1,
		},
		{
			name:   "user subpage logged in",
			target: Target{Path: "/alice/spotify/favorites"}, session: alice, wantRule: "user-page",
		},
		{
			name:   "root logged in",
			target: Target{Path: "/"}, session: models.Session{UserID: "alice", IsAuthenticated: true}, want: "/alice/home", wantRule: "root",
		},
		{
			name:   "root restores once",
			target: Target{Path: ""}, restorable: &alice, want: "/alice/home", wantRule: "root", wantRestores: 1,
		},
		{
			name:   "root logged out",
			target: Target{Path: "/"}, wantRule: "default", wantRestores: 1,
		},
		{
			name:   "auth always allowed",
			target: Target{Path: "/auth/"}, session: alice, wantRule: "auth",
		},
		{
			name:   "auth allowed logged out without restore",
			target: Target{Path: "/auth"}, wantRule: "auth",
		},
		{
			name:   "bare user logged out",
			target: Target{Path: "/alice"}, want: "/auth", wantRule: "user-param", wantRestores: 1,
		},
		{
			name:   "bare user logged in",
			target: Target{Path: "/alice"}, session: alice, wantRule: "default",
		},
		{
			name:   "reserved prefix is not a user page",
			target: Target{Path: "/api/health"}, wantRule: "default",
		},
		{
			name:   "oauth marker with path user ignores auth",
			target: Target{Path: "/anything", Query: q("oauth", "success", "platform", "youtube")}, want: "/anything/youtube-music", wantRule: "oauth-complete",
		},
		{
			name:   "oauth marker on user home",
			target: Target{Path: "/bob/home", Query: q("oauth", "success", "platform", "yandex")}, want: "/bob/yandex-music", wantRule: "oauth-complete",
		},
		{
			name:   "oauth marker uses session handle",
			target: Target{Path: "/", Query: q("oauth", "success", "platform", "spotify")}, session: alice, want: "/alice/spotify", wantRule: "oauth-complete",
		},
		{
			name:   "oauth marker with google tag",
			target: Target{Path: "/bob/home", Query: q("oauth", "success", "platform", "google")}, want: "/bob/youtube-music", wantRule: "oauth-complete",
		},
		{
			name:   "oauth marker on root while logged out",
			target: Target{Path: "/", Query: q("oauth", "success", "platform", "spotify")}, want: "/auth", wantRule: "oauth-complete", wantRestores: 1,
		},
		{
			name:   "oauth marker without any user",
			target: Target{Path: "/oauth/callback", Query: q("oauth", "success", "platform", "spotify")}, want: "/auth", wantRule: "oauth-complete", wantRestores: 1,
		},
		{
			name:   "unknown provider falls through",
			target: Target{Path: "/alice/home", Query: q("oauth", "success", "platform", "napster")}, want: "/auth", wantRule: "user-page", wantRestores: 1,
		},
		{
			name:   "failed oauth falls through",
			target: Target{Path: "/alice/home", Query: q("oauth", "error", "platform", "spotify")}, session: alice, wantRule: "user-page",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &countingRestorer{}
			if tt.restorable != nil {
				r.sess, r.ok = *tt.restorable, true
			}

			got := Decide(tt.target, tt.session, r.restore)

			if got.Redirect != tt.want {
				t.Errorf("Decide() redirect = %q, want %q", got.Redirect, tt.want)
			}
			if got.Rule != tt.wantRule {
				t.Errorf("Decide() rule = %q, want %q", got.Rule, tt.wantRule)
			}
			if r.calls != tt.wantRestores {
				t.Errorf("restorer called %d times, want %d", r.calls, tt.wantRestores)
			}
			if got.Allowed() != (tt.want == "") {
				t.Errorf("Allowed() = %v", got.Allowed())
			}
		})
	}
}

func TestDecideAuthStatesForOAuth(t *testing.T) {
	target := Target{Path: "/anything", Query: q("oauth", "success", "platform", "youtube")}
	for _, sess := range []models.Session{{}, alice} {
		if got := Decide(target, sess, nil); got.Redirect != "/anything/youtube-music" {
			t.Errorf("session %+v: got %v", sess, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"":             "/",
		"/":            "/",
		"///":          "/",
		"/alice/home/": "/alice/home",
		"alice":        "/alice",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecisionString(t *testing.T) {
	if got := redirectTo("/auth", "user-page").String(); got != "redirect /auth (user-page)" {
		t.Errorf("unexpected %q", got)
	}
	if got := allow("auth").String(); got != "allow (auth)" {
		t.Errorf("unexpected %q", got)
	}
}
