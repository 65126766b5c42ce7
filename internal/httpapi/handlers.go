package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tictactoe-client/internal/apiclient"
	"github.com/DoyleJ11/tictactoe-client/internal/reconcile"
	"github.com/DoyleJ11/tictactoe-client/internal/session"
	"github.com/DoyleJ11/tictactoe-client/internal/ws"
)

// Controller adds read access to the intents a viewer can issue.
type Controller interface {
	ws.Controller
	Snapshot() reconcile.Session
}

// Stats is the server's REST side. *apiclient.Client satisfies it.
type Stats interface {
	Leaderboard(ctx context.Context, limit int) ([]apiclient.LeaderboardEntry, error)
	PlayerStats(ctx context.Context, username string) (apiclient.PlayerStats, error)
	GameHistory(ctx context.Context, username string, page, limit int) (json.RawMessage, error)
}

type handlers struct {
	ctl              Controller
	stats            Stats
	leaderboardLimit int
	log              *zap.Logger
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg} with status.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"error": msg})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.ctl.Snapshot())
}

// intent runs one session intent and answers with the resulting session.
func (h *handlers) intent(run func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := run(r.Context()); err != nil {
			h.intentError(w, err)
			return
		}
		JSON(w, http.StatusOK, h.ctl.Snapshot())
	}
}

func (h *handlers) intentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reconcile.ErrEmptyUsername), errors.Is(err, reconcile.ErrInvalidPosition):
		Error(w, http.StatusBadRequest, err.Error())
	case reconcile.IsLocalValidation(err):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrClosed), errors.Is(err, session.ErrSendFailed), errors.Is(err, context.DeadlineExceeded):
		Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Warn("intent failed", zap.Error(err))
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *handlers) startMatchmaking(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		Error(w, http.StatusBadRequest, "bad json")
		return
	}
	h.intent(func(ctx context.Context) error {
		return h.ctl.StartMatchmaking(ctx, body.Username)
	})(w, r)
}

func (h *handlers) submitMove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Position *int `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		Error(w, http.StatusBadRequest, "bad json")
		return
	}
	if body.Position == nil {
		Error(w, http.StatusBadRequest, "position is required")
		return
	}
	h.intent(func(ctx context.Context) error {
		return h.ctl.SubmitMove(ctx, *body.Position)
	})(w, r)
}

func (h *handlers) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := h.leaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.stats.Leaderboard(r.Context(), limit)
	if err != nil {
		h.collaboratorError(w, "leaderboard", err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (h *handlers) playerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.PlayerStats(r.Context(), chi.URLParam(r, "username"))
	switch {
	case errors.Is(err, apiclient.ErrPlayerNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case err != nil:
		h.collaboratorError(w, "player stats", err)
	default:
		JSON(w, http.StatusOK, map[string]any{"data": stats})
	}
}

func (h *handlers) gameHistory(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	raw, err := h.stats.GameHistory(r.Context(), chi.URLParam(r, "username"), page, limit)
	switch {
	case errors.Is(err, apiclient.ErrHistoryUnavailable):
		Error(w, http.StatusNotImplemented, err.Error())
	case err != nil:
		h.collaboratorError(w, "game history", err)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
	}
}

// collaboratorError never touches the session; the failure stays local to this request.
func (h *handlers) collaboratorError(w http.ResponseWriter, what string, err error) {
	h.log.Warn("collaborator request failed", zap.String("request", what), zap.Error(err))
	Error(w, http.StatusBadGateway, "failed to fetch "+what)
}
