package session

import (
	"github.com/DoyleJ11/tictactoe-client/internal/protocol"
	"github.com/DoyleJ11/tictactoe-client/internal/reconcile"
)

type Msg interface{ isSessionMsg() }

type StartMatchmaking struct {
	Username string
	Reply    chan error
}

type CancelMatchmaking struct{ Reply chan error }

type SubmitMove struct {
	Position int
	Reply    chan error
}

type LeaveGame struct{ Reply chan error }

type RefreshGame struct{ Reply chan error }

type ShowLeaderboard struct{ Reply chan error }

type CloseLeaderboard struct{ Reply chan error }

// FromServer carries one decoded inbound event, in arrival order.
type FromServer struct {
	Event protocol.Inbound
}

type ConnectionChanged struct {
	Connected bool
}

// Report surfaces a notice that does not change the session, such as a
// collaborator failure or an undecodable server frame.
type Report struct {
	Notice reconcile.Notice
}

type Watch struct {
	ID     string
	Outbox chan Update // where this observer wants to receive updates
}

type Unwatch struct{ ID string }

// Teardown cancels server-side matchmaking best-effort before the process exits.
type Teardown struct{ Reply chan error }

type Shutdown struct{}

func (StartMatchmaking) isSessionMsg()  {}
func (CancelMatchmaking) isSessionMsg() {}
func (SubmitMove) isSessionMsg()        {}
func (LeaveGame) isSessionMsg()         {}
func (RefreshGame) isSessionMsg()       {}
func (ShowLeaderboard) isSessionMsg()   {}
func (CloseLeaderboard) isSessionMsg()  {}
func (FromServer) isSessionMsg()        {}
func (ConnectionChanged) isSessionMsg() {}
func (Report) isSessionMsg()            {}
func (Watch) isSessionMsg()             {}
func (Unwatch) isSessionMsg()           {}
func (Teardown) isSessionMsg()          {}
func (Shutdown) isSessionMsg()          {}

// Update is what observers receive after every committed transition.
type Update struct {
	Version int                `json:"version"`
	Session reconcile.Session  `json:"session"`
	Notices []reconcile.Notice `json:"notices,omitempty"`
}
