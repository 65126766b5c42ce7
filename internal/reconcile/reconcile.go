package reconcile

import (
	"fmt"

	"github.com/DoyleJ11/tictactoe-client/internal/game"
	"github.com/DoyleJ11/tictactoe-client/internal/protocol"
)

const (
	PendingCommitted  = "committed"
	PendingSuperseded = "superseded"
	PendingDiscarded  = "discarded"
)

// Apply maps one inbound server event onto the session. The identity used for
// player resolution is always the one held by s at the time of the call.
func Apply(s Session, in protocol.Inbound) Result {
	var r Result

	switch msg := in.(type) {
	case protocol.QueueJoined:
		r.Session = s
		r.notify(NoticeInfo, orDefault(msg.Message, "Joined the matchmaking queue"))

	case protocol.QueueLeft:
		r.Session = s
		r.notify(NoticeInfo, orDefault(msg.Message, "Left the matchmaking queue"))

	case protocol.QueueRejoined:
		if !s.InGame() && s.Identity != "" {
			s.Phase = PhaseQueued
		}
		r.Session = s
		r.notify(NoticeInfo, orDefault(msg.Message, "Rejoined the matchmaking queue"))

	case protocol.GameStarted:
		r = enterGame(s, msg.Game)

	case protocol.Reconnected:
		snap := msg.Game
		if snap.GameID == "" {
			snap.GameID = msg.GameID
		}
		r = enterGame(s, snap)

	case protocol.GameState:
		r = refreshGame(s, msg.Game)

	case protocol.MoveMade:
		r = applyMove(s, msg)

	case protocol.GameFinished:
		r = finishGame(s, msg)

	case protocol.OpponentDisconnected:
		r = opponentLost(s, msg)

	case protocol.MoveError:
		r = rejectMove(s, msg)

	case protocol.ServerError:
		r.Session = s
		r.notify(NoticeTransport, "Error: "+orDefault(msg.Message, "unknown server error"))

	case protocol.WinEffect:
		r.Session = s
		r.notify(NoticeCelebration, fmt.Sprintf("%s wins as %s!", msg.WinnerUsername, msg.Winner))

	default:
		r.Session = s
		r.Dropped = fmt.Sprintf("unhandled event %T", in)
	}

	r.Session = settle(r.Session)
	return r
}

func enterGame(s Session, snap game.Snapshot) Result {
	var r Result

	me, ok := snap.FindPlayer(s.Identity)
	if !ok {
		r.Session = resetToLobby(s)
		r.Notices = append(r.Notices, Notice{
			Kind:    NoticeIdentityMismatch,
			Message: fmt.Sprintf("Error: Player %s not found in game. Please rejoin.", s.Identity),
			Fatal:   true,
		})
		return r
	}

	for _, c := range snap.SymbolConflicts() {
		r.notify(NoticeWarning, fmt.Sprintf(
			"player %s in seat %d declares symbol %q but seat convention is %q; using declared symbol",
			c.Username, c.Seat, c.Declared, c.Positional))
	}

	s.Player = &me
	s = withConfirmed(s, snap)
	s.Pending = nil
	s.Phase = phaseFor(snap.Status)
	s.View = ViewGame
	r.Session = s
	return r
}

func refreshGame(s Session, snap game.Snapshot) Result {
	var r Result
	if reason := staleGame(s, snap.GameID); reason != "" {
		r.Session = s
		r.Dropped = reason
		return r
	}

	if me, ok := snap.FindPlayer(s.Identity); ok {
		s.Player = &me
	} else {
		r.notify(NoticeWarning, fmt.Sprintf("game %s state no longer lists player %s", snap.GameID, s.Identity))
	}
	if s.Pending != nil {
		r.PendingOutcome = PendingSuperseded
	}
	s = withConfirmed(s, snap)
	s.Pending = nil
	s.Phase = phaseFor(snap.Status)
	r.Session = s
	return r
}

func applyMove(s Session, m protocol.MoveMade) Result {
	var r Result
	if reason := staleGame(s, m.GameID); reason != "" {
		r.Session = s
		r.Dropped = reason
		return r
	}

	next := s.confirmed.Clone()
	next.Board = m.Board
	next.CurrentPlayer = m.CurrentPlayer
	next.Winner = m.Winner
	next.Status = m.Status

	if p := s.Pending; p != nil {
		if m.Board[p.Position] == p.Symbol {
			r.PendingOutcome = PendingCommitted
		} else {
			r.PendingOutcome = PendingSuperseded
		}
	}
	s = withConfirmed(s, next)
	s.Pending = nil
	s.Phase = phaseFor(next.Status)
	r.Session = s
	return r
}

func finishGame(s Session, m protocol.GameFinished) Result {
	var r Result
	if reason := staleGame(s, m.GameID); reason != "" {
		r.Session = s
		r.Dropped = reason
		return r
	}

	next := s.confirmed.Clone()
	next.Winner = m.Winner
	next.Board = m.Board
	next.Status = game.StatusFinished

	if s.Pending != nil {
		r.PendingOutcome = PendingSuperseded
	}
	s = withConfirmed(s, next)
	s.Pending = nil
	s.Phase = PhaseFinished
	r.Session = s
	return r
}

func opponentLost(s Session, m protocol.OpponentDisconnected) Result {
	var r Result
	if reason := staleGame(s, m.GameID); reason != "" {
		r.Session = s
		r.Dropped = reason
		return r
	}
	if s.Pending != nil {
		r.PendingOutcome = PendingDiscarded
	}
	r.Session = resetToLobby(s)
	r.notify(NoticeOpponentLost, orDefault(m.Message, "Your opponent disconnected. Returning to lobby."))
	return r
}

func rejectMove(s Session, m protocol.MoveError) Result {
	var r Result
	msg := "Move Error: " + orDefault(m.Message, "move rejected by server")

	if s.Pending == nil {
		r.Session = s
		r.notify(NoticeMoveRejected, msg)
		return r
	}

	r.Session = discardPending(s)
	r.PendingOutcome = PendingDiscarded
	r.notify(NoticeMoveRejected, msg)
	return r
}

// MoveNotSent undoes the optimistic cell of a move that never reached the
// server. The caller has already reported the send failure.
func MoveNotSent(s Session) Session {
	if s.Pending == nil {
		return s
	}
	return discardPending(s)
}

func discardPending(s Session) Session {
	if s.confirmed != nil {
		g := s.confirmed.Clone()
		s.Game = &g
	}
	s.Pending = nil
	return s
}

// staleGame returns a non-empty reason when an event cannot apply to the
// current game. An empty gameID is accepted as referring to the active game.
func staleGame(s Session, gameID string) string {
	if s.confirmed == nil || s.Game == nil {
		return "no active game"
	}
	if gameID != "" && gameID != s.confirmed.GameID {
		return fmt.Sprintf("event for game %s while game %s is active", gameID, s.confirmed.GameID)
	}
	return ""
}

// withConfirmed installs snap as both the authoritative and rendered game.
func withConfirmed(s Session, snap game.Snapshot) Session {
	c := snap.Clone()
	g := snap.Clone()
	s.confirmed = &c
	s.Game = &g
	return s
}

func orDefault(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
