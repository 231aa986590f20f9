package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spx/internal/player"
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
	MsgLoaded MsgKind = iota
	MsgHandled
	MsgTick
)

// result is the payload of [MsgLoaded] and [MsgHandled].
type result struct {
	action   player.Action
	snapshot player.Snapshot
	err      error
}

// loadedMsg is the constructor for [MsgLoaded]
func loadedMsg(snapshot player.Snapshot, err error) Msg {
	return Msg{kind: MsgLoaded, data: result{snapshot: snapshot, err: err}}
}

// handledMsg is the constructor for [MsgHandled]
func handledMsg(action player.Action, snapshot player.Snapshot, err error) Msg {
	return Msg{kind: MsgHandled, data: result{action: action, snapshot: snapshot, err: err}}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg() Msg {
	return Msg{kind: MsgTick}
}
