package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/tictactoe-client/internal/game"
)

var ErrUnknownEvent = errors.New("unknown event")
var ErrBadPayload = errors.New("malformed payload")

// Outbound event names.
const (
	EvtJoinQueue    = "join_queue"
	EvtLeaveQueue   = "leave_queue"
	EvtMakeMove     = "make_move"
	EvtGetGameState = "get_game_state"
	EvtReconnect    = "reconnect"
)

// Inbound event names.
const (
	EvtQueueJoined          = "queue_joined"
	EvtQueueLeft            = "queue_left"
	EvtQueueRejoined        = "queue_rejoined"
	EvtGameStarted          = "game_started"
	EvtGameState            = "game_state"
	EvtReconnected          = "reconnected"
	EvtMoveMade             = "move_made"
	EvtGameFinished         = "game_finished"
	EvtOpponentDisconnected = "opponent_disconnected"
	EvtMoveError            = "move_error"
	EvtError                = "error"
	EvtShowWinEffect        = "showWinEffect"
)

// InboundEvents lists every event name Decode understands.
var InboundEvents = []string{
	EvtQueueJoined,
	EvtQueueLeft,
	EvtQueueRejoined,
	EvtGameStarted,
	EvtGameState,
	EvtReconnected,
	EvtMoveMade,
	EvtGameFinished,
	EvtOpponentDisconnected,
	EvtMoveError,
	EvtError,
	EvtShowWinEffect,
}

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps an outbound message in an envelope.
func Encode(msg Outbound) (Envelope, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", msg.EventName(), err)
	}
	return Envelope{Event: msg.EventName(), Data: data}, nil
}

// Decode turns an inbound envelope into its typed message.
func Decode(env Envelope) (Inbound, error) {
	switch env.Event {
	case EvtQueueJoined:
		return decodeAs[QueueJoined](env)
	case EvtQueueLeft:
		return decodeAs[QueueLeft](env)
	case EvtQueueRejoined:
		return decodeAs[QueueRejoined](env)
	case EvtGameStarted:
		var m GameStarted
		if err := unmarshal(env, &m.Game); err != nil {
			return nil, err
		}
		if err := validateSnapshot(env.Event, m.Game); err != nil {
			return nil, err
		}
		return m, nil
	case EvtGameState:
		var m GameState
		if err := unmarshal(env, &m.Game); err != nil {
			return nil, err
		}
		if err := validateSnapshot(env.Event, m.Game); err != nil {
			return nil, err
		}
		return m, nil
	case EvtReconnected:
		var m Reconnected
		if err := unmarshal(env, &m); err != nil {
			return nil, err
		}
		if m.GameID == "" {
			m.GameID = m.Game.GameID
		}
		if err := validateSnapshot(env.Event, m.Game); err != nil {
			return nil, err
		}
		return m, nil
	case EvtMoveMade:
		return decodeMoveMade(env)
	case EvtGameFinished:
		return decodeGameFinished(env)
	case EvtOpponentDisconnected:
		return decodeAs[OpponentDisconnected](env)
	case EvtMoveError:
		return decodeAs[MoveError](env)
	case EvtError:
		return decodeAs[ServerError](env)
	case EvtShowWinEffect:
		return decodeAs[WinEffect](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decodeAs[T Inbound](env Envelope) (Inbound, error) {
	var m T
	if err := unmarshal(env, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func unmarshal(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadPayload, env.Event, err)
	}
	return nil
}

func validateSnapshot(event string, s game.Snapshot) error {
	if !s.CurrentPlayer.Valid() || !s.Status.Valid() || !s.Winner.Valid() {
		return fmt.Errorf("%w: %s: bad turn/status/winner", ErrBadPayload, event)
	}
	return nil
}

type moveMadeWire struct {
	GameID        string       `json:"gameId"`
	Position      *int         `json:"position"`
	Board         *game.Board  `json:"board"`
	CurrentPlayer game.Symbol  `json:"currentPlayer"`
	Winner        game.Outcome `json:"winner"`
	Status        game.Status  `json:"status"`
}

func decodeMoveMade(env Envelope) (Inbound, error) {
	var w moveMadeWire
	if err := unmarshal(env, &w); err != nil {
		return nil, err
	}
	if w.Board == nil {
		return nil, fmt.Errorf("%w: %s: missing board", ErrBadPayload, env.Event)
	}
	if !w.CurrentPlayer.Valid() || !w.Status.Valid() || !w.Winner.Valid() {
		return nil, fmt.Errorf("%w: %s: bad turn/status/winner", ErrBadPayload, env.Event)
	}
	return MoveMade{
		GameID:        w.GameID,
		Position:      w.Position,
		Board:         *w.Board,
		CurrentPlayer: w.CurrentPlayer,
		Winner:        w.Winner,
		Status:        w.Status,
	}, nil
}

type gameFinishedWire struct {
	GameID string       `json:"gameId"`
	Winner game.Outcome `json:"winner"`
	Board  *game.Board  `json:"board"`
}

func decodeGameFinished(env Envelope) (Inbound, error) {
	var w gameFinishedWire
	if err := unmarshal(env, &w); err != nil {
		return nil, err
	}
	if w.Board == nil {
		return nil, fmt.Errorf("%w: %s: missing board", ErrBadPayload, env.Event)
	}
	if !w.Winner.Valid() {
		return nil, fmt.Errorf("%w: %s: bad winner %q", ErrBadPayload, env.Event, w.Winner)
	}
	return GameFinished{GameID: w.GameID, Winner: w.Winner, Board: *w.Board}, nil
}
