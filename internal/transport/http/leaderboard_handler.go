package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"learnplay-engine/internal/domain"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// LeaderboardService records and ranks mini-game scores.
type LeaderboardService interface {
	SubmitScore(ctx context.Context, userID, gameType string, score int, level *int, metadata map[string]any) (domain.GameScore, error)
	DeleteScore(ctx context.Context, id string) error
	TopScores(ctx context.Context, scope domain.Scope, limit, offset int, viewerUserID string) (domain.LeaderboardPage, error)
	TopScoresUniqueUsers(ctx context.Context, scope domain.Scope, limit, offset int, viewerUserID string) (domain.LeaderboardPage, error)
	UserRank(ctx context.Context, userID string, scope domain.Scope) (int, error)
	PersonalBests(ctx context.Context, userID string) ([]domain.PersonalBest, error)
}

// LeaderboardHandler serves score submission and ranking routes.
type LeaderboardHandler struct {
	BaseHandler
	leaderboards LeaderboardService
}

func NewLeaderboardHandler(leaderboards LeaderboardService, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{BaseHandler: BaseHandler{Logger: logger}, leaderboards: leaderboards}
}

// RegisterRoutes assumes the router is already scoped to /api/v1.
func (h *LeaderboardHandler) RegisterRoutes(r chi.Router) {
	r.Route("/games/{gameType}", func(r chi.Router) {
		r.Post("/scores", h.SubmitScore)
		r.Get("/leaderboard", h.Leaderboard)
		r.Get("/rank", h.Rank)
	})
	r.Get("/scores/best", h.PersonalBests)
	r.Delete("/admin/scores/{id}", h.DeleteScore)
}

type submitScoreRequest struct {
	Score    *int           `json:"score"`
	Level    *int           `json:"level"`
	Metadata map[string]any `json:"metadata"`
}

// SubmitScore handles POST /games/{gameType}/scores
func (h *LeaderboardHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req submitScoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Score == nil {
		h.RespondError(w, http.StatusBadRequest, "score is required")
		return
	}

	row, err := h.leaderboards.SubmitScore(r.Context(), userID, chi.URLParam(r, "gameType"), *req.Score, req.Level, req.Metadata)
	if err != nil {
		h.RespondServiceError(w, r, err)
		return
	}
	h.RespondJSON(w, http.StatusCreated, row)
}

// Leaderboard handles GET /games/{gameType}/leaderboard?level=&limit=&offset=&unique=
func (h *LeaderboardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, ok := h.intParam(w, q.Get("limit"), "limit", defaultPageLimit)
	if !ok {
		return
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset, ok := h.intParam(w, q.Get("offset"), "offset", 0)
	if !ok {
		return
	}
	unique := false
	if raw := q.Get("unique"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.RespondError(w, http.StatusBadRequest, "invalid unique flag")
			return
		}
		unique = parsed
	}

	viewer := r.Header.Get(UserIDHeader)
	var (
		page domain.LeaderboardPage
		err  error
	)
	if unique {
		page, err = h.leaderboards.TopScoresUniqueUsers(r.Context(), scope, limit, offset, viewer)
	} else {
		page, err = h.leaderboards.TopScores(r.Context(), scope, limit, offset, viewer)
	}
	if err != nil {
		h.RespondServiceError(w, r, err)
		return
	}
	h.RespondJSON(w, http.StatusOK, page)
}

// Rank handles GET /games/{gameType}/rank?level=
func (h *LeaderboardHandler) Rank(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	rank, err := h.leaderboards.UserRank(r.Context(), userID, scope)
	if err != nil {
		h.RespondServiceError(w, r, err)
		return
	}
	h.RespondJSON(w, http.StatusOK, map[string]any{
		"gameType": scope.GameType,
		"level":    scope.Level,
		"rank":     rank,
		"ranked":   rank > 0,
	})
}

// PersonalBests handles GET /scores/best
func (h *LeaderboardHandler) PersonalBests(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	bests, err := h.leaderboards.PersonalBests(r.Context(), userID)
	if err != nil {
		h.RespondServiceError(w, r, err)
		return
	}
	h.RespondJSON(w, http.StatusOK, bests)
}

// DeleteScore handles DELETE /admin/scores/{id}
func (h *LeaderboardHandler) DeleteScore(w http.ResponseWriter, r *http.Request) {
	if err := h.leaderboards.DeleteScore(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.RespondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LeaderboardHandler) scope(w http.ResponseWriter, r *http.Request) (domain.Scope, bool) {
	scope := domain.Scope{GameType: chi.URLParam(r, "gameType")}
	if raw := r.URL.Query().Get("level"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil {
			h.RespondError(w, http.StatusBadRequest, "invalid level")
			return domain.Scope{}, false
		}
		scope.Level = &level
	}
	return scope, true
}

func (h *LeaderboardHandler) intParam(w http.ResponseWriter, raw, name string, fallback int) (int, bool) {
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}
