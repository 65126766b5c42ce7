package protocol

import "github.com/DoyleJ11/tictactoe-client/internal/game"

// Inbound is the closed set of server -> client messages.
type Inbound interface {
	EventName() string
	isInbound()
}

type QueueJoined struct {
	Message string `json:"message"`
}

type QueueLeft struct {
	Message string `json:"message"`
}

type QueueRejoined struct {
	Message string `json:"message"`
}

type GameStarted struct {
	Game game.Snapshot
}

type GameState struct {
	Game game.Snapshot
}

type Reconnected struct {
	GameID string        `json:"gameId"`
	Game   game.Snapshot `json:"game"`
}

// MoveMade carries only the fields the server recomputes after a move.
type MoveMade struct {
	GameID        string
	Position      *int
	Board         game.Board
	CurrentPlayer game.Symbol
	Winner        game.Outcome
	Status        game.Status
}

type GameFinished struct {
	GameID string
	Winner game.Outcome
	Board  game.Board
}

type OpponentDisconnected struct {
	GameID  string `json:"gameId"`
	Message string `json:"message"`
}

type MoveError struct {
	Message string `json:"message"`
}

// ServerError is the generic "error" event.
type ServerError struct {
	Message string `json:"message"`
}

type WinEffect struct {
	Winner         game.Symbol `json:"winner"`
	WinnerUsername string      `json:"winnerUsername"`
}

func (QueueJoined) EventName() string          { return EvtQueueJoined }
func (QueueLeft) EventName() string            { return EvtQueueLeft }
func (QueueRejoined) EventName() string        { return EvtQueueRejoined }
func (GameStarted) EventName() string          { return EvtGameStarted }
func (GameState) EventName() string            { return EvtGameState }
func (Reconnected) EventName() string          { return EvtReconnected }
func (MoveMade) EventName() string             { return EvtMoveMade }
func (GameFinished) EventName() string         { return EvtGameFinished }
func (OpponentDisconnected) EventName() string { return EvtOpponentDisconnected }
func (MoveError) EventName() string            { return EvtMoveError }
func (ServerError) EventName() string          { return EvtError }
func (WinEffect) EventName() string            { return EvtShowWinEffect }

func (QueueJoined) isInbound()          {}
func (QueueLeft) isInbound()            {}
func (QueueRejoined) isInbound()        {}
func (GameStarted) isInbound()          {}
func (GameState) isInbound()            {}
func (Reconnected) isInbound()          {}
func (MoveMade) isInbound()             {}
func (GameFinished) isInbound()         {}
func (OpponentDisconnected) isInbound() {}
func (MoveError) isInbound()            {}
func (ServerError) isInbound()          {}
func (WinEffect) isInbound()            {}

// Outbound is any client -> server message.
type Outbound interface {
	EventName() string
}

type JoinQueue struct {
	Username string `json:"username"`
}

type LeaveQueue struct{}

type MakeMove struct {
	GameID   string `json:"gameId"`
	Position int    `json:"position"`
}

type GetGameState struct {
	GameID string `json:"gameId"`
}

type Reconnect struct {
	Username string `json:"username"`
	GameID   string `json:"gameId,omitempty"`
}

func (JoinQueue) EventName() string    { return EvtJoinQueue }
func (LeaveQueue) EventName() string   { return EvtLeaveQueue }
func (MakeMove) EventName() string     { return EvtMakeMove }
func (GetGameState) EventName() string { return EvtGetGameState }
func (Reconnect) EventName() string    { return EvtReconnect }
