package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
	"learnplay-engine/internal/app"
)

// RouterOptions tunes NewRouter.
type RouterOptions struct {
	// RateLimit is requests per minute per client IP on /api; 0 disables it.
	RateLimit int
}

// NewRouter mounts the REST API, the websocket feed and the health check.
func NewRouter(engine *app.Engine, logger *zap.Logger, opts RouterOptions) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware(logger))
	r.Use(RecoveryMiddleware(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	feed := NewFeedHandler(engine.Leaderboards, logger.Named("feed"))
	r.Get("/ws/leaderboard", feed.ServeWS)

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
		}
		r.Use(middleware.AllowContentType("application/json"))

		NewProgressHandler(engine.Progress, engine.Streaks, engine.Badges, logger).RegisterRoutes(r)
		NewQuizHandler(engine.Quizzes, logger).RegisterRoutes(r)
		NewLeaderboardHandler(engine.Leaderboards, logger).RegisterRoutes(r)
	})
	return r
}
