package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/orbitune/internal/cache"
	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/services"
	"github.com/desertthunder/orbitune/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistsView ViewState = iota
	FavoritesView
	TracksView
)

// Library is the part of the orchestrator the browser drives.
type Library interface {
	FetchIfAbsent(ctx context.Context, userID string, key models.CacheKey) error
	Refresh(ctx context.Context, userID string, key models.CacheKey) error
	FetchPage(ctx context.Context, userID string, p models.Platform, offset, limit int) error
	FetchPlaylistTracks(ctx context.Context, userID string, p models.Platform, playlistID string) error
	Cache() *cache.ResourceCache
	Platforms() []models.Platform
	PageSize() int
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	lib        Library
	session    models.Session
	progress   <-chan tasks.ProgressUpdate
	platforms  []models.Platform
	active     int
	view       ViewState
	playlistID string
	list       list.Model
	status     string
	width      int
	height     int
	help       help.Model
	keys       keyMap
}

// NewModel creates a browser for sess. progress may be nil.
func NewModel(ctx context.Context, lib Library, sess models.Session, progress <-chan tasks.ProgressUpdate) *Model {
	var platforms []models.Platform
	for _, p := range lib.Platforms() {
		if p != models.Orbitune {
			platforms = append(platforms, p)
		}
	}

	l := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	l.SetShowHelp(false)

	m := &Model{
		ctx:       ctx,
		lib:       lib,
		session:   sess,
		progress:  progress,
		platforms: platforms,
		view:      PlaylistsView,
		list:      l,
		help:      help.New(),
		keys:      newKeyMap(),
	}
	m.rebuild()
	return m
}

// Platform returns the selected platform.
func (m *Model) Platform() models.Platform {
	if len(m.platforms) == 0 {
		return models.PlatformUnknown
	}
	return m.platforms[m.active]
}

// State returns the current view.
func (m *Model) State() ViewState { return m.view }

func (m *Model) key() models.CacheKey {
	if m.view == FavoritesView {
		return models.Key(m.Platform(), models.Favorites)
	}
	return models.Key(m.Platform(), models.Playlists)
}

// Init loads the first platform's playlists and starts listening for progress.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load(false), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		if cmd, handled := m.handleKeys(msg); handled {
			return m, cmd
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return tea.Quit, true
	case key.Matches(msg, m.keys.next), key.Matches(msg, m.keys.prev):
		if len(m.platforms) == 0 {
			return nil, true
		}
		step := 1
		if key.Matches(msg, m.keys.prev) {
			step = len(m.platforms) - 1
		}
		m.active = (m.active + step) % len(m.platforms)
		if m.view == TracksView {
			m.view = PlaylistsView
		}
		return tea.Batch(m.rebuild(), m.load(false)), true
	case key.Matches(msg, m.keys.playlists):
		m.view = PlaylistsView
		return tea.Batch(m.rebuild(), m.load(false)), true
	case key.Matches(msg, m.keys.favorites):
		m.view = FavoritesView
		return tea.Batch(m.rebuild(), m.load(false)), true
	case key.Matches(msg, m.keys.more):
		return m.loadMore(), true
	case key.Matches(msg, m.keys.refresh):
		if m.view == TracksView {
			return nil, true
		}
		return m.load(true), true
	case key.Matches(msg, m.keys.back):
		if m.view != TracksView {
			return nil, false
		}
		m.view = PlaylistsView
		m.playlistID = ""
		return m.rebuild(), true
	case key.Matches(msg, m.keys.enter):
		if m.view != PlaylistsView {
			return nil, true
		}
		item, ok := m.list.SelectedItem().(playlistItem)
		if !ok {
			return nil, true
		}
		m.playlistID = item.playlist.ID.String()
		m.view = TracksView
		return tea.Batch(m.rebuild(), m.fetchTracks(m.Platform(), m.playlistID)), true
	}
	return nil, false
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgResourceLoaded:
		if data := msg.data.(loaded); data.err != nil {
			m.status = fmt.Sprintf("%s: %s", data.key, services.ErrorMessage(data.err))
		}
	case MsgTracksLoaded:
		if data := msg.data.(tracksLoaded); data.err != nil {
			m.status = fmt.Sprintf("tracks: %s", services.ErrorMessage(data.err))
		}
	case MsgProgressUpdate:
		m.status = msg.data.(tasks.ProgressUpdate).Message
		return m, tea.Batch(m.rebuild(), m.waitForProgress())
	case MsgProgressClosed:
		m.progress = nil
		return m, nil
	}
	return m, m.rebuild()
}

// rebuild refreshes the list from the cache snapshot of the current view.
func (m *Model) rebuild() tea.Cmd {
	rc := m.lib.Cache()
	p := m.Platform()

	switch m.view {
	case FavoritesView:
		fav, _ := rc.Favorites(p)
		m.list.Title = fmt.Sprintf("%s favorites (%d/%d)", p, fav.LoadedOffset, fav.TotalCount)
		return m.list.SetItems(trackItems(fav.Tracks))
	case TracksView:
		pl, ok := rc.Playlist(p, m.playlistID)
		if !ok {
			m.list.Title = "Playlist unavailable"
			return m.list.SetItems(nil)
		}
		m.list.Title = fmt.Sprintf("Tracks in '%s' (%s)", pl.Title, models.FormatCount(pl.TrackCount))
		return m.list.SetItems(trackItems(pl.Tracks))
	default:
		m.list.Title = fmt.Sprintf("%s playlists", p)
		return m.list.SetItems(playlistItems(rc.Playlists(p)))
	}
}

func (m *Model) load(force bool) tea.Cmd {
	key := m.key()
	userID := m.session.UserID
	return func() tea.Msg {
		var err error
		if force {
			err = m.lib.Refresh(m.ctx, userID, key)
		} else {
			err = m.lib.FetchIfAbsent(m.ctx, userID, key)
		}
		return resourceLoadedMsg(key, err)
	}
}

func (m *Model) loadMore() tea.Cmd {
	if m.view != FavoritesView {
		return nil
	}
	p := m.Platform()
	fav, ok := m.lib.Cache().Favorites(p)
	if !ok || !fav.HasMore() {
		m.status = fmt.Sprintf("all %s favorites loaded", p)
		return nil
	}

	userID := m.session.UserID
	offset, limit := fav.LoadedOffset, m.lib.PageSize()
	return func() tea.Msg {
		err := m.lib.FetchPage(m.ctx, userID, p, offset, limit)
		return resourceLoadedMsg(models.Key(p, models.Favorites), err)
	}
}

func (m *Model) fetchTracks(p models.Platform, playlistID string) tea.Cmd {
	userID := m.session.UserID
	return func() tea.Msg {
		err := m.lib.FetchPlaylistTracks(m.ctx, userID, p, playlistID)
		return tracksLoadedMsg(p, playlistID, err)
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	progress := m.progress
	return func() tea.Msg {
		if progress == nil {
			return progressClosedMsg()
		}
		update, ok := <-progress
		if !ok {
			return progressClosedMsg()
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) entryStatus() string {
	if m.view == TracksView {
		return ""
	}
	entry := m.lib.Cache().Entry(m.key())
	switch entry.State {
	case models.Loading:
		return styles.warn.Render("Loading...")
	case models.Refreshing:
		return styles.warn.Render("Refreshing...")
	case models.Error:
		return styles.err.Render("Error: " + entry.Err)
	default:
		return ""
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if len(m.platforms) == 0 {
		return styles.err.Render("No platforms configured\n\nPress q to quit")
	}

	names := make([]string, len(m.platforms))
	for i, p := range m.platforms {
		names[i] = p.String()
	}
	header := fmt.Sprintf("%s  %s", styles.title.Render(m.session.Handle()), styles.tabs(names, m.active))

	footer := m.entryStatus()
	if msg := m.lib.Cache().Err(); msg != "" {
		footer += "\n" + styles.err.Render(msg)
	}
	if m.status != "" {
		footer += "\n" + styles.help.Render(m.status)
	}

	helpKeys := []key.Binding{m.keys.next, m.keys.playlists, m.keys.favorites, m.keys.refresh, m.keys.quit}
	switch m.view {
	case PlaylistsView:
		helpKeys = append([]key.Binding{m.keys.enter}, helpKeys...)
	case FavoritesView:
		helpKeys = append([]key.Binding{m.keys.more}, helpKeys...)
	case TracksView:
		helpKeys = []key.Binding{m.keys.back, m.keys.next, m.keys.quit}
	}

	return fmt.Sprintf("%s\n%s\n%s\n\n%s", header, m.list.View(), footer, m.help.ShortHelpView(helpKeys))
}
