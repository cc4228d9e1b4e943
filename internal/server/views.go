package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/desertthunder/orbitune/internal/cache"
	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/router"
	"github.com/desertthunder/orbitune/internal/shared"
)

// EntryView is the load state of one cache slot.
type EntryView struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

func entryView(e cache.Entry) EntryView {
	return EntryView{State: e.State.String(), Error: e.Err}
}

// PlatformSummary is one row of the home view.
type PlatformSummary struct {
	Platform  models.Platform `json:"platform"`
	Page      string          `json:"page"`
	Playlists int             `json:"playlists"`
	Favorites int             `json:"favorites"`
	Status    EntryView       `json:"status"`
}

// ViewHandler serves the JSON views of the user pages.
type ViewHandler struct {
	sessions Sessions
	fetcher  Fetcher
	mux      *http.ServeMux
}

// NewViewHandler wires the view routes.
func NewViewHandler(sessions Sessions, fetcher Fetcher) *ViewHandler {
	h := &ViewHandler{sessions: sessions, fetcher: fetcher, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /{$}", h.landing)
	h.mux.HandleFunc("GET /auth", h.auth)
	h.mux.HandleFunc("GET /{user}", h.user)
	h.mux.HandleFunc("GET /{user}/home", h.home)
	h.mux.HandleFunc("GET /{user}/{page}", h.playlists)
	h.mux.HandleFunc("GET /{user}/{page}/favorites", h.favorites)
	h.mux.HandleFunc("GET /{user}/{page}/playlists/{id}", h.playlist)
	h.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *ViewHandler) Routes() []string {
	return []string{"/"}
}

func (h *ViewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrOutOfOrderPage):
		return http.StatusConflict
	case errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrUnknownPlatform):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrPlaylistNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// platform resolves the {page} segment; the guard already checked the session.
func (h *ViewHandler) platform(w http.ResponseWriter, r *http.Request) (models.Platform, bool) {
	p, err := models.ParsePlatform(r.PathValue("page"))
	if err != nil || p == models.Orbitune {
		writeError(w, http.StatusNotFound, "unknown page "+r.PathValue("page"))
		return p, false
	}
	return p, true
}

func (h *ViewHandler) landing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":           "orbitune",
		"authenticated": false,
		"login":         "/auth",
	})
}

func (h *ViewHandler) auth(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Current()
	body := map[string]any{"authenticated": sess.IsAuthenticated}
	if sess.IsAuthenticated {
		body["user"] = sess
		body["home"] = router.HomePath(sess)
	}
	if msg := h.sessions.Err(); msg != "" {
		body["error"] = msg
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *ViewHandler) user(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/"+r.PathValue("user")+"/home", http.StatusFound)
}

func (h *ViewHandler) home(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Current()
	h.fetcher.FetchIfAbsent(r.Context(), sess.UserID, models.ServicesKey())

	rc := h.fetcher.Cache()
	summaries := make([]PlatformSummary, 0, len(h.fetcher.Platforms()))
	for _, p := range h.fetcher.Platforms() {
		fav, _ := rc.Favorites(p)
		summaries = append(summaries, PlatformSummary{
			Platform:  p,
			Page:      router.PlatformPath(r.PathValue("user"), p),
			Playlists: len(rc.Playlists(p)),
			Favorites: fav.TotalCount,
			Status:    entryView(rc.Entry(models.Key(p, models.Playlists))),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":      sess.Handle(),
		"services":  rc.Services(),
		"status":    entryView(rc.Entry(models.ServicesKey())),
		"platforms": summaries,
		"error":     rc.Err(),
	})
}

func (h *ViewHandler) playlists(w http.ResponseWriter, r *http.Request) {
	p, ok := h.platform(w, r)
	if !ok {
		return
	}
	sess := h.sessions.Current()
	key := models.Key(p, models.Playlists)
	h.fetcher.FetchIfAbsent(r.Context(), sess.UserID, key)

	rc := h.fetcher.Cache()
	writeJSON(w, http.StatusOK, map[string]any{
		"platform":  p,
		"status":    entryView(rc.Entry(key)),
		"playlists": rc.Playlists(p),
	})
}

func queryInt(r *http.Request, name string) (int, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, errors.Join(shared.ErrInvalidArgument, err)
	}
	return n, true, nil
}

func (h *ViewHandler) favorites(w http.ResponseWriter, r *http.Request) {
	p, ok := h.platform(w, r)
	if !ok {
		return
	}
	sess := h.sessions.Current()
	key := models.Key(p, models.Favorites)

	offset, paged, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset: "+err.Error())
		return
	}
	limit, _, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit: "+err.Error())
		return
	}

	if paged {
		if err := h.fetcher.FetchPage(r.Context(), sess.UserID, p, offset, limit); err != nil && statusFor(err) != http.StatusBadGateway {
			writeError(w, statusFor(err), err.Error())
			return
		}
	} else {
		h.fetcher.FetchIfAbsent(r.Context(), sess.UserID, key)
	}

	rc := h.fetcher.Cache()
	fav, _ := rc.Favorites(p)
	writeJSON(w, http.StatusOK, map[string]any{
		"platform":  p,
		"status":    entryView(rc.Entry(key)),
		"favorites": fav,
		"has_more":  fav.HasMore(),
	})
}

func (h *ViewHandler) playlist(w http.ResponseWriter, r *http.Request) {
	p, ok := h.platform(w, r)
	if !ok {
		return
	}
	sess := h.sessions.Current()
	id := r.PathValue("id")

	h.fetcher.FetchIfAbsent(r.Context(), sess.UserID, models.Key(p, models.Playlists))
	if err := h.fetcher.FetchPlaylistTracks(r.Context(), sess.UserID, p, id); err != nil && statusFor(err) != http.StatusBadGateway {
		writeError(w, statusFor(err), err.Error())
		return
	}

	pl, found := h.fetcher.Cache().Playlist(p, id)
	if !found {
		writeError(w, http.StatusNotFound, "playlist "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, pl)
}
