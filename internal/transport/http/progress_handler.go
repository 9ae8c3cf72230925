package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"learnplay-engine/internal/app"
	"learnplay-engine/internal/domain"
)

// ProgressService is the XP surface used by ProgressHandler.
type ProgressService interface {
	Progress(ctx context.Context, userID string) (domain.UserProgress, bool, error)
	AwardXP(ctx context.Context, userID string, amount int) (app.AwardResult, bool, error)
}

// StreakService records daily check-ins.
type StreakService interface {
	Checkin(ctx context.Context, userID string) (app.CheckinResult, error)
}

// BadgeService evaluates and lists badges.
type BadgeService interface {
	CheckAndAwardBadges(ctx context.Context, userID string) ([]domain.Badge, error)
	UserBadges(ctx context.Context, userID string) ([]domain.EarnedBadge, error)
}

// ProgressHandler serves progress, streak and badge routes for the calling user.
type ProgressHandler struct {
	BaseHandler
	progress ProgressService
	streaks  StreakService
	badges   BadgeService
}

func NewProgressHandler(progress ProgressService, streaks StreakService, badges BadgeService, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler: BaseHandler{Logger: logger},
		progress:    progress,
		streaks:     streaks,
		badges:      badges,
	}
}

// RegisterRoutes assumes the router is already scoped to /api/v1.
func (h *ProgressHandler) RegisterRoutes(r chi.Router) {
	r.Get("/progress", h.GetProgress)
	r.Post("/progress/xp", h.AddXP)
	r.Post("/streak/checkin", h.Checkin)
	r.Post("/badges/check", h.CheckBadges)
	r.Get("/badges", h.ListBadges)
}

type addXPRequest struct {
	Amount int `json:"amount"`
}

// GetProgress handles GET /progress
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	p, found, err := h.progress.Progress(r.Context(), userID)
	if err != nil {
		h.RespondServiceError(w, r, err)
		return
	}
	if !found {
		h.RespondServiceError(w, r, domain.ErrProgressNotFound)
		return
	}
	h.RespondJSON(w, http.StatusOK, p)
}

// AddXP handles POST /progress/xp
func (h *ProgressHandler) AddXP(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req addXPRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, found, err := h.progress.AwardXP(r.Context(), userID, req.Amount)
	if err != nil {
		h.RespondServiceError(w, r, err)
		return
	}
	if !found {
		h.RespondServiceError(w, r, domain.ErrProgressNotFound)
		return
	}
	h.RespondJSON(w, http.StatusOK, res)
}

// Checkin handles POST /streak/checkin
func (h *ProgressHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	res, err := h.streaks.Checkin(r.Context(), userID)
	if err != nil {
		h.RespondServiceError(w, r, err)
		return
	}
	h.RespondJSON(w, http.StatusOK, res)
}

// CheckBadges handles POST /badges/check
func (h *ProgressHandler) CheckBadges(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	awarded, err := h.badges.CheckAndAwardBadges(r.Context(), userID)
	if err != nil {
		h.RespondServiceError(w, r, err)
		return
	}
	h.RespondJSON(w, http.StatusOK, map[string]any{"awarded": awarded})
}

// ListBadges handles GET /badges
func (h *ProgressHandler) ListBadges(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	badges, err := h.badges.UserBadges(r.Context(), userID)
	if err != nil {
		h.RespondServiceError(w, r, err)
		return
	}
	h.RespondJSON(w, http.StatusOK, badges)
}
