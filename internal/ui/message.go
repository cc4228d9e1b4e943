package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/orbitune/internal/models"
	"github.com/desertthunder/orbitune/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgResourceLoaded MsgKind = iota
	MsgTracksLoaded
	MsgProgressUpdate
	MsgProgressClosed
)

type loaded struct {
	key models.CacheKey
	err error
}

type tracksLoaded struct {
	platform   models.Platform
	playlistID string
	err        error
}

// resourceLoadedMsg is the constructor for [MsgResourceLoaded]
func resourceLoadedMsg(key models.CacheKey, err error) Msg {
	return Msg{kind: MsgResourceLoaded, data: loaded{key, err}}
}

// tracksLoadedMsg is the constructor for [MsgTracksLoaded]
func tracksLoadedMsg(p models.Platform, playlistID string, err error) Msg {
	return Msg{kind: MsgTracksLoaded, data: tracksLoaded{p, playlistID, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

func progressClosedMsg() Msg {
	return Msg{kind: MsgProgressClosed}
}
