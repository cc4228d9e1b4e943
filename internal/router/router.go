package router

import (
	"net/url"
	"strings"

	"github.com/desertthunder/orbitune/internal/models"
)

const authPath = "/auth"

// reserved first segments never name a user.
var reserved = map[string]bool{"auth": true, "oauth": true, "api": true, "static": true}

// Target is a navigation attempt.
type Target struct {
	Path  string
	Query url.Values
}

// Decision is the outcome of [Decide]: allow the navigation or redirect it.
type Decision struct {
	Redirect string // empty when allowed
	Rule     string // name of the rule that matched
}

// Allowed reports whether the navigation may proceed.
func (d Decision) Allowed() bool { return d.Redirect == "" }

func (d Decision) String() string {
	if d.Allowed() {
		return "allow (" + d.Rule + ")"
	}
	return "redirect " + d.Redirect + " (" + d.Rule + ")"
}

func allow(rule string) Decision { return Decision{Rule: rule} }

func redirectTo(path, rule string) Decision { return Decision{Redirect: path, Rule: rule} }

// Restorer reloads a persisted session without network access.
type Restorer func() (models.Session, bool)

// auth resolves the effective session, calling the restorer at most once.
type auth struct {
	sess     models.Session
	restore  Restorer
	attempts int
}

func (a *auth) session() models.Session {
	if a.sess.IsAuthenticated || a.restore == nil || a.attempts > 0 {
		return a.sess
	}
	a.attempts++
	if sess, ok := a.restore(); ok && sess.IsAuthenticated {
		a.sess = sess
	}
	return a.sess
}

func (a *auth) authenticated() bool { return a.session().IsAuthenticated }

// Normalize trims trailing slashes and maps the empty path to "/".
func Normalize(path string) string {
	path = strings.TrimRight(strings.TrimSpace(path), "/")
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func segments(path string) []string {
	if path == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

func userSegment(segs []string) string {
	if len(segs) == 0 || reserved[segs[0]] {
		return ""
	}
	return segs[0]
}

// HomePath is the landing page of a session.
func HomePath(sess models.Session) string {
	return "/" + url.PathEscape(sess.Handle()) + "/home"
}

// PlatformPath is a user's view of one platform.
func PlatformPath(user string, p models.Platform) string {
	return "/" + url.PathEscape(user) + "/" + p.Page()
}

// oauthPlatform returns the provider of an OAuth completion marker.
func oauthPlatform(q url.Values) (models.Platform, bool) {
	if q.Get("oauth") != "success" {
		return models.PlatformUnknown, false
	}
	p, err := models.ParsePlatform(q.Get("platform"))
	if err != nil || p == models.Orbitune {
		return models.PlatformUnknown, false
	}
	return p, true
}

// Decide applies the navigation rules in order; the first match wins.
//
//  1. OAuth completion marker with a known provider: redirect to the provider's landing page.
//  2. User page (/{user}/...) while logged out: redirect to /auth.
//  3. Root while logged in: redirect to the user's home.
//  4. /auth: allow.
//  5. Bare user path (/{user}) while logged out: redirect to /auth.
//  6. Anything else: allow.
//
// restore runs at most once, and only when a rule depends on the session.
//
// Rule 1 lands on /{user}/{platform}. Without a user segment in the path it falls back to the
// session's handle, and to /auth when nobody is logged in.
func Decide(target Target, sess models.Session, restore Restorer) Decision {
	a := &auth{sess: sess, restore: restore}
	path := Normalize(target.Path)
	segs := segments(path)
	user := userSegment(segs)

	if p, ok := oauthPlatform(target.Query); ok {
		if user == "" {
			if s := a.session(); s.IsAuthenticated {
				user = s.Handle()
			}
		}
		if user == "" {
			return redirectTo(authPath, "oauth-complete")
		}
		return redirectTo(PlatformPath(user, p), "oauth-complete")
	}

	if user != "" && len(segs) >= 2 {
		if a.authenticated() {
			return allow("user-page")
		}
		return redirectTo(authPath, "user-page")
	}

	if path == "/" {
		if s := a.session(); s.IsAuthenticated {
			return redirectTo(HomePath(s), "root")
		}
	}

	if path == authPath {
		return allow("auth")
	}

	if user != "" && len(segs) == 1 && !a.authenticated() {
		return redirectTo(authPath, "user-param")
	}

	return allow("default")
}
