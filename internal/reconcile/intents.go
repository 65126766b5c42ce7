package reconcile

import (
	"fmt"
	"strings"

	"github.com/DoyleJ11/tictactoe-client/internal/game"
	"github.com/DoyleJ11/tictactoe-client/internal/protocol"
)

// rejected builds the result of a locally refused intent: session untouched,
// one validation notice, nothing sent.
func rejected(s Session, err error) (Result, error) {
	r := Result{Session: s}
	r.notify(NoticeLocalValidation, err.Error())
	return r, err
}

func StartMatchmaking(s Session, username string) (Result, error) {
	cleaned := strings.TrimSpace(username)
	if cleaned == "" {
		return rejected(s, ErrEmptyUsername)
	}
	if s.InGame() {
		return rejected(s, ErrGameActive)
	}

	s.Identity = cleaned
	s.Player = &game.PlayerRef{Username: cleaned}
	s.Phase = PhaseQueued
	s.View = ViewLobby

	r := Result{Session: s}
	r.send(protocol.JoinQueue{Username: cleaned})
	return r, nil
}

// CancelMatchmaking abandons the queue. It only talks to the server when the
// session is actually queued and never touches an active game.
func CancelMatchmaking(s Session) Result {
	var r Result
	if s.InGame() {
		r.Session = s
		return r
	}
	if s.Phase == PhaseQueued {
		r.send(protocol.LeaveQueue{})
	}
	s.Phase = PhaseIdle
	s.Player = nil
	r.Session = settle(s)
	return r
}

// LeaveGame returns to the lobby. With no game it only resets the view.
func LeaveGame(s Session) Result {
	var r Result
	if s.Game == nil {
		s.View = ViewLobby
		r.Session = s
		return r
	}
	if s.Pending != nil {
		r.PendingOutcome = PendingDiscarded
	}
	r.send(protocol.LeaveQueue{})
	r.Session = resetToLobby(s)
	return r
}

// SubmitMove validates a move locally and, when accepted, writes the local
// symbol into the rendered board before the server has seen it.
func SubmitMove(s Session, position int) (Result, error) {
	if s.View != ViewGame || !s.InGame() || s.confirmed == nil {
		return rejected(s, ErrNotInGame)
	}
	if !game.ValidPosition(position) {
		return rejected(s, fmt.Errorf("%w: got %d", ErrInvalidPosition, position))
	}
	if s.Game.Status != game.StatusPlaying {
		return rejected(s, ErrGameNotPlaying)
	}
	mine := s.Player.Symbol
	if mine == game.SymbolNone {
		return rejected(s, ErrNoSymbol)
	}
	if s.Game.CurrentPlayer != mine {
		return rejected(s, fmt.Errorf("%w: current player is %s, you are %s", ErrNotYourTurn, s.Game.CurrentPlayer, mine))
	}
	if s.Pending != nil {
		return rejected(s, ErrMovePending)
	}
	if !s.Game.Board.IsEmpty(position) {
		return rejected(s, ErrCellOccupied)
	}

	rendered := s.Game.Clone()
	rendered.Board, _ = rendered.Board.With(position, mine)
	s.Game = &rendered
	s.Pending = &PendingMove{Position: position, Symbol: mine}

	r := Result{Session: s}
	r.send(protocol.MakeMove{GameID: rendered.GameID, Position: position})
	return r, nil
}

// RefreshGame asks the server for the authoritative state of the active game.
func RefreshGame(s Session) (Result, error) {
	if s.Game == nil {
		return rejected(s, ErrNotInGame)
	}
	r := Result{Session: s}
	r.send(protocol.GetGameState{GameID: s.Game.GameID})
	return r, nil
}

func ShowLeaderboard(s Session) Result {
	s.View = ViewLeaderboard
	return Result{Session: s}
}

// CloseLeaderboard goes back to whichever view the game state implies.
func CloseLeaderboard(s Session) Result {
	if s.InGame() {
		s.View = ViewGame
	} else {
		s.View = ViewLobby
	}
	return Result{Session: s}
}

// ConnectionChanged records a transport up/down edge. Coming back up while
// queued or in a game asks the server to resume the session.
func ConnectionChanged(s Session, connected bool) Result {
	var r Result
	was := s.Connection

	if !connected {
		s.Connection = Disconnected
		if was == Connected {
			r.notify(NoticeTransport, "Disconnected from server")
		}
		r.Session = s
		return r
	}

	s.Connection = Connected
	if was != Connected && s.Identity != "" {
		switch {
		case s.Game != nil:
			r.send(protocol.Reconnect{Username: s.Identity, GameID: s.Game.GameID})
		case s.Phase == PhaseQueued:
			r.send(protocol.Reconnect{Username: s.Identity})
		}
	}
	r.Session = s
	return r
}

// Teardown is the unload path: cancel server-side matchmaking or game
// membership if any, and reset local intent.
func Teardown(s Session) Result {
	var r Result
	if s.Phase == PhaseQueued || s.Game != nil {
		r.send(protocol.LeaveQueue{})
	}
	r.Session = resetToLobby(s)
	return r
}
