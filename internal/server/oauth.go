package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/shared"
)

// OAuthResult is the outcome of a provider linking flow as reported by the backend redirect.
type OAuthResult struct {
	Platform models.Platform
	err      error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// parseOAuthMarker reads the completion marker the backend appends after linking a provider.
// ok is false when the request carries no marker at all.
func parseOAuthMarker(r *http.Request) (result OAuthResult, ok bool) {
	q := r.URL.Query()
	status := q.Get("oauth")
	if status == "" {
		return OAuthResult{}, false
	}
	if status != "success" {
		reason := q.Get("error")
		if reason == "" {
			reason = status
		}
		return OAuthResult{err: fmt.Errorf("%w: provider linking %s", shared.ErrAuthFailed, reason)}, true
	}

	p, err := models.ParsePlatform(q.Get("platform"))
	if err != nil {
		return OAuthResult{err: err}, true
	}
	if p == models.Orbitune {
		return OAuthResult{err: fmt.Errorf("%w: %s is not a provider", shared.ErrUnknownPlatform, p)}, true
	}
	return OAuthResult{Platform: p}, true
}

// OAuthHandler waits for the backend's OAuth completion redirect.
//
// Used by the CLI while the browser runs the provider flow. It only processes one callback.
type OAuthHandler struct {
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a handler ready to receive one completion redirect.
func NewOAuthHandler() *OAuthHandler {
	return &OAuthHandler{resultChan: make(chan OAuthResult, 1)}
}

// Routes returns the HTTP routes this handler serves. The backend may land on any user path.
func (h *OAuthHandler) Routes() []string {
	return []string{"/"}
}

// ServeHTTP handles the completion redirect.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	result, ok := parseOAuthMarker(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	// Only handle callback once
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	h.Send(result)
	if err := result.Error(); err != nil {
		http.Error(w, "Linking failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Account Linked</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #7c5cff; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ %s linked</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`, result.Platform)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// Wait blocks until the callback arrives or ctx ends.
func (h *OAuthHandler) Wait(ctx context.Context) (models.Platform, error) {
	select {
	case res := <-h.resultChan:
		return res.Platform, res.Error()
	case <-ctx.Done():
		return models.PlatformUnknown, fmt.Errorf("%w: waiting for provider redirect", shared.ErrTimeout)
	}
}
