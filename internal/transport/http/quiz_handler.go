package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"learnplay-engine/internal/app"
	"learnplay-engine/internal/domain"
)

// QuizService grades quizzes and applies lesson completion.
type QuizService interface {
	SubmitQuiz(ctx context.Context, lessonID, userID string, answers []domain.Answer) (domain.QuizResult, error)
	CompleteLesson(ctx context.Context, userID string, result domain.QuizResult) (app.LessonCompletionResult, error)
}

// QuizHandler serves quiz submissions.
type QuizHandler struct {
	BaseHandler
	quizzes QuizService
}

func NewQuizHandler(quizzes QuizService, logger *zap.Logger) *QuizHandler {
	return &QuizHandler{BaseHandler: BaseHandler{Logger: logger}, quizzes: quizzes}
}

// RegisterRoutes assumes the router is already scoped to /api/v1.
func (h *QuizHandler) RegisterRoutes(r chi.Router) {
	r.Post("/lessons/{lessonID}/quiz", h.Submit)
}

type submitQuizRequest struct {
	Answers []domain.Answer `json:"answers"`
}

type submitQuizResponse struct {
	Result     domain.QuizResult          `json:"result"`
	Completion app.LessonCompletionResult `json:"completion"`
}

// Submit handles POST /lessons/{lessonID}/quiz
func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req submitQuizRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.quizzes.SubmitQuiz(r.Context(), chi.URLParam(r, "lessonID"), userID, req.Answers)
	if err != nil {
		h.RespondServiceError(w, r, err)
		return
	}
	completion, err := h.quizzes.CompleteLesson(r.Context(), userID, result)
	if err != nil {
		h.RespondServiceError(w, r, err)
		return
	}
	h.RespondJSON(w, http.StatusOK, submitQuizResponse{Result: result, Completion: completion})
}
