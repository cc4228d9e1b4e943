package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/shared"
)

// PlaylistTracks is the body of GET /playlists/{id}/tracks.
type PlaylistTracks struct {
	Tracks      []models.Track `json:"tracks"`
	TracksCount *int           `json:"tracks_count"`
}

// FavoritesPage is one page of GET /favorites.
type FavoritesPage struct {
	Tracks      []models.Track `json:"tracks"`
	TracksCount int            `json:"tracks_count"`
	Playlist    *struct {
		ID         models.ID `json:"id"`
		ExternalID string    `json:"external_id"`
	} `json:"playlist"`
}

// BackendOpts configures [NewBackend].
type BackendOpts struct {
	BaseURL    string
	Timeout    time.Duration // per request; zero disables
	RateLimit  float64       // requests per second; zero disables
	Burst      int
	HTTPClient *http.Client // defaults to a client with a cookie jar
	Logger     *log.Logger
}

// Backend is the typed client for the Orbitune REST API.
//
// Credentials are session cookies kept in the HTTP client's jar; the client never reads them.
type Backend struct {
	api     *APIService
	timeout time.Duration
}

// NewBackend creates a [Backend] from opts.
func NewBackend(opts BackendOpts) *Backend {
	client := opts.HTTPClient
	if client == nil {
		jar, _ := cookiejar.New(nil)
		client = &http.Client{Jar: jar, Timeout: opts.Timeout}
	}

	api := NewAPIService(opts.BaseURL, client).
		WithRateLimit(opts.RateLimit, opts.Burst).
		WithLogger(opts.Logger)

	return &Backend{api: api, timeout: opts.Timeout}
}

// BaseURL returns the backend root URL.
func (b *Backend) BaseURL() string {
	return b.api.baseURL
}

// OAuthLoginURL is where the browser starts linking a provider. The flow itself runs on the backend.
func (b *Backend) OAuthLoginURL(p models.Platform) string {
	return fmt.Sprintf("%s/oauth/%s/login", b.api.baseURL, p.Wire())
}

func (b *Backend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// call runs one request and decodes a 2xx body into out (which may be nil).
func (b *Backend) call(ctx context.Context, method, path string, query url.Values, in, out any) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	var (
		resp *APIResponse
		err  error
	)
	switch method {
	case http.MethodGet:
		resp, err = b.api.Get(ctx, path, query)
	case http.MethodDelete:
		resp, err = b.api.Delete(ctx, path, query)
	case http.MethodPost:
		var data []byte
		if in != nil {
			if data, err = json.Marshal(in); err != nil {
				return fmt.Errorf("%w: failed to encode request: %v", shared.ErrInvalidInput, err)
			}
		}
		resp, err = b.api.Post(ctx, path, query, data)
	default:
		return fmt.Errorf("%w: method %s", shared.ErrNotImplemented, method)
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %s %s: %v", shared.ErrTimeout, method, path, err)
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if err := resp.Err(); err != nil {
		return err
	}

	if out != nil {
		return resp.Decode(out)
	}
	return nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User *models.User `json:"user"`
}

func (b *Backend) authenticate(ctx context.Context, path, email, password string) (*models.User, error) {
	var res authResponse
	if err := b.call(ctx, http.MethodPost, path, nil, credentials{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	if res.User == nil || res.User.ID == "" {
		return nil, fmt.Errorf("%w: response carried no user", shared.ErrAuthFailed)
	}
	return res.User, nil
}

// Login authenticates with email and password.
func (b *Backend) Login(ctx context.Context, email, password string) (*models.User, error) {
	return b.authenticate(ctx, "/auth/login", email, password)
}

// Register creates an account and authenticates it.
func (b *Backend) Register(ctx context.Context, email, password string) (*models.User, error) {
	return b.authenticate(ctx, "/auth/register", email, password)
}

// Logout invalidates the server-side session.
func (b *Backend) Logout(ctx context.Context) error {
	return b.call(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

// ConnectedServices lists the user's linked providers.
//
// Rows are decoded one by one. A row whose tag maps to no known provider is skipped, so one
// unexpected tag does not hide the others; duplicates keep the first row.
func (b *Backend) ConnectedServices(ctx context.Context, userID string) ([]models.ConnectedService, error) {
	var rows []struct {
		Platform string `json:"platform"`
		Status   string `json:"status"`
	}
	q := url.Values{"user_id": {userID}}
	if err := b.call(ctx, http.MethodGet, "/connected_services", q, nil, &rows); err != nil {
		return nil, err
	}

	out := make([]models.ConnectedService, 0, len(rows))
	seen := make(map[models.Platform]bool, len(rows))
	for _, row := range rows {
		p, err := models.ParsePlatform(row.Platform)
		if err != nil || p == models.Orbitune {
			b.api.logger.Debug("skipping connected service", "platform", row.Platform)
			continue
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, models.ConnectedService{Platform: p, Status: row.Status})
	}
	return out, nil
}

// DisconnectService unlinks a provider.
func (b *Backend) DisconnectService(ctx context.Context, userID string, p models.Platform) error {
	q := url.Values{"user_id": {userID}, "platform": {p.Wire()}}
	return b.call(ctx, http.MethodDelete, "/connected_services", q, nil, nil)
}

// SyncServices asks the backend to re-sync every linked provider's library.
func (b *Backend) SyncServices(ctx context.Context, userID string) error {
	q := url.Values{"user_id": {userID}}
	return b.call(ctx, http.MethodPost, "/connected_services/sync", q, nil, nil)
}

// Playlists lists the user's playlists on a platform.
func (b *Backend) Playlists(ctx context.Context, userID string, p models.Platform) ([]models.Playlist, error) {
	var res struct {
		Playlists []models.Playlist `json:"playlists"`
	}
	q := url.Values{"user_id": {userID}, "platform": {p.Wire()}}
	if err := b.call(ctx, http.MethodGet, "/playlists", q, nil, &res); err != nil {
		return nil, err
	}
	if res.Playlists == nil {
		res.Playlists = []models.Playlist{}
	}
	return res.Playlists, nil
}

// PlaylistTracks hydrates one playlist.
func (b *Backend) PlaylistTracks(ctx context.Context, userID, playlistID string, p models.Platform) (*PlaylistTracks, error) {
	var res PlaylistTracks
	q := url.Values{"platform": {p.Wire()}, "user_id": {userID}}
	path := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	if err := b.call(ctx, http.MethodGet, path, q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// TrackCounts resolves track counts for many playlists in one round trip. Ids without a count are absent from the map.
func (b *Backend) TrackCounts(ctx context.Context, ids []string) (map[string]int, error) {
	var res struct {
		Counts map[string]int `json:"counts"`
	}
	body := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}
	if err := b.call(ctx, http.MethodPost, "/playlists/tracks_count_batch", nil, body, &res); err != nil {
		return nil, err
	}
	if res.Counts == nil {
		res.Counts = map[string]int{}
	}
	return res.Counts, nil
}

// Favorites fetches one page of the user's favorites. A zero limit lets the backend choose.
func (b *Backend) Favorites(ctx context.Context, userID string, p models.Platform, offset, limit int) (*FavoritesPage, error) {
	q := url.Values{"user_id": {userID}, "platform": {p.Wire()}, "offset": {strconv.Itoa(offset)}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var res FavoritesPage
	if err := b.call(ctx, http.MethodGet, "/favorites", q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
