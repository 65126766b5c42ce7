package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tictactoe-client/internal/ws"
)

func SetupRoutes(ctl Controller, stats Stats, leaderboardLimit int, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &handlers{ctl: ctl, stats: stats, leaderboardLimit: leaderboardLimit, log: log.Named("httpapi")}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(requestLogger(h.log))

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(ctl, log))

	r.Get("/session", h.getSession)
	r.Post("/matchmaking", h.startMatchmaking)
	r.Delete("/matchmaking", h.intent(ctl.CancelMatchmaking))
	r.Post("/moves", h.submitMove)
	r.Post("/leave", h.intent(ctl.LeaveGame))
	r.Post("/refresh", h.intent(ctl.RefreshGame))
	r.Post("/view/leaderboard", h.intent(ctl.ShowLeaderboard))
	r.Delete("/view/leaderboard", h.intent(ctl.CloseLeaderboard))

	r.Get("/leaderboard", h.leaderboard)
	r.Route("/players/{username}", func(r chi.Router) {
		r.Get("/stats", h.playerStats)
		r.Get("/history", h.gameHistory)
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
		})
	}
}
