package tasks

import (
	"fmt"

	"github.com/desertthunder/orbitune/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchServices Phase = iota
	FetchPlaylists
	FetchFavorites
	HydrateCounts
	FetchTracks
	SyncProviders
	Disconnect
	ScheduleRefresh
	BackgroundRefresh
)

func (p Phase) String() string {
	switch p {
	case FetchServices:
		return "fetch_services"
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchFavorites:
		return "fetch_favorites"
	case HydrateCounts:
		return "hydrate_counts"
	case FetchTracks:
		return "fetch_tracks"
	case SyncProviders:
		return "sync_providers"
	case Disconnect:
		return "disconnect"
	case ScheduleRefresh:
		return "schedule_refresh"
	case BackgroundRefresh:
		return "background_refresh"
	default:
		return ""
	}
}

func phaseFor(kind models.ResourceKind) Phase {
	switch kind {
	case models.Favorites:
		return FetchFavorites
	case models.ConnectedServices:
		return FetchServices
	default:
		return FetchPlaylists
	}
}

// fetchedUpdate reports a finished slot fetch. Data carries the [models.CacheKey].
func fetchedUpdate(step, total int, key models.CacheKey, err error) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s", step, total, key)
	if err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, key, err)
	}
	return ProgressUpdate{
		Phase:   phaseFor(key.Kind),
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    key,
	}
}

func favoritesPageUpdate(p models.Platform, offset, loaded, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFavorites,
		Step:    loaded,
		Total:   total,
		Message: fmt.Sprintf("Loaded %s favorites from offset %d (%d/%d)", p, offset, loaded, total),
		Data:    models.Key(p, models.Favorites),
	}
}

func countsUpdate(p models.Platform, resolved, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   HydrateCounts,
		Step:    resolved,
		Total:   total,
		Message: fmt.Sprintf("Resolved %d/%d %s track counts", resolved, total, p),
		Data:    models.Key(p, models.Playlists),
	}
}

func tracksUpdate(p models.Platform, playlistID string, n int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loaded %d tracks for %s playlist %s", n, p, playlistID),
		Data:    models.Key(p, models.Playlists),
	}
}

func disconnectUpdate(p models.Platform) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Disconnect,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Disconnected %s", p),
		Data:    models.ServicesKey(),
	}
}

func scheduledUpdate(task Task) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScheduleRefresh,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Background refresh scheduled for %s", task.Due.Format("15:04:05")),
		Data:    task,
	}
}

func refreshedUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BackgroundRefresh,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Background refresh finished (%d slots)", total),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}
