// Package types holds the local viewer socket's wire messages.
//
// Viewer -> client
//
//	join:        username
//	cancel:      {}
//	move:        position (0..8)
//	leave:       {}
//	refresh:     {}
//	leaderboard: open (true shows, false closes)
//
// Client -> viewer
//
//	update: version, screen, session, notices
//	error:  error
package types

import (
	"github.com/DoyleJ11/tictactoe-client/internal/reconcile"
	"github.com/DoyleJ11/tictactoe-client/internal/view"
)

const (
	MsgJoin        = "join"
	MsgCancel      = "cancel"
	MsgMove        = "move"
	MsgLeave       = "leave"
	MsgRefresh     = "refresh"
	MsgLeaderboard = "leaderboard"

	MsgUpdate = "update"
	MsgError  = "error"
)

type ClientMessage struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Position *int   `json:"position,omitempty"`
	Open     bool   `json:"open,omitempty"`
}

type ServerMessage struct {
	Type    string             `json:"type"` // "update" | "error"
	Version int                `json:"version,omitempty"`
	Screen  view.Active        `json:"screen,omitempty"`
	Session *reconcile.Session `json:"session,omitempty"`
	Notices []reconcile.Notice `json:"notices,omitempty"`
	Error   string             `json:"error,omitempty"`
}
