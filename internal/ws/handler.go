package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tictactoe-client/internal/reconcile"
	"github.com/DoyleJ11/tictactoe-client/internal/session"
	"github.com/DoyleJ11/tictactoe-client/internal/types"
	"github.com/DoyleJ11/tictactoe-client/internal/view"
)

const (
	writeTimeout  = 3 * time.Second
	intentTimeout = 5 * time.Second
	updateBuffer  = 16
)

// Controller is the session surface a viewer drives. *session.Store satisfies it.
type Controller interface {
	StartMatchmaking(ctx context.Context, username string) error
	CancelMatchmaking(ctx context.Context) error
	SubmitMove(ctx context.Context, position int) error
	LeaveGame(ctx context.Context) error
	RefreshGame(ctx context.Context) error
	ShowLeaderboard(ctx context.Context) error
	CloseLeaderboard(ctx context.Context) error
	Watch(ctx context.Context, buffer int) (<-chan session.Update, func(), error)
}

var errUnknownType = errors.New("unknown type")

// Handler streams every session update to one local viewer and applies the
// intents it sends back.
func Handler(ctl Controller, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("viewer")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
		})
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		updates, stop, err := ctl.Watch(r.Context(), updateBuffer)
		if err != nil {
			conn.Close(websocket.StatusTryAgainLater, "session unavailable")
			return
		}
		defer stop()
		log.Info("viewer attached")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for u := range updates {
				msg := types.ServerMessage{
					Type:    types.MsgUpdate,
					Version: u.Version,
					Screen:  view.ForSession(u.Session),
					Session: &u.Session,
					Notices: u.Notices,
				}
				if err := writeJSON(writeCtx, conn, msg); err != nil {
					return
				}
			}
			// A cancelled writeCtx means the handler is already closing normally.
			if writeCtx.Err() != nil {
				return
			}
			// Fell behind or the store shut down; the viewer must reattach.
			conn.Close(websocket.StatusPolicyViolation, "update stream closed")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("viewer read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = writeJSON(r.Context(), conn, types.ServerMessage{Type: types.MsgError, Error: "bad json"})
				continue
			}

			ctx, cancel := context.WithTimeout(r.Context(), intentTimeout)
			err = dispatch(ctx, ctl, cm)
			cancel()
			if err != nil && !errors.Is(err, context.Canceled) {
				// Local validation failures also arrive as notices; the error
				// frame ties the failure to this request.
				_ = writeJSON(r.Context(), conn, types.ServerMessage{Type: types.MsgError, Error: err.Error()})
			}
		}
	}
}

func dispatch(ctx context.Context, ctl Controller, m types.ClientMessage) error {
	switch m.Type {
	case types.MsgJoin:
		return ctl.StartMatchmaking(ctx, m.Username)
	case types.MsgCancel:
		return ctl.CancelMatchmaking(ctx)
	case types.MsgMove:
		if m.Position == nil {
			return reconcile.ErrInvalidPosition
		}
		return ctl.SubmitMove(ctx, *m.Position)
	case types.MsgLeave:
		return ctl.LeaveGame(ctx)
	case types.MsgRefresh:
		return ctl.RefreshGame(ctx)
	case types.MsgLeaderboard:
		if m.Open {
			return ctl.ShowLeaderboard(ctx)
		}
		return ctl.CloseLeaderboard(ctx)
	default:
		return fmt.Errorf("%w %q", errUnknownType, m.Type)
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
