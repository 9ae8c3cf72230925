package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"learnplay-engine/internal/domain"
)

// DefaultPassingScore applies when a quiz does not set its own threshold.
const DefaultPassingScore = 70

// QuizBonus is the XP bonus for a passed quiz score.
func QuizBonus(score int) int {
	switch {
	case score == 100:
		return 50
	case score >= 90:
		return 25
	case score >= 70:
		return 10
	default:
		return 0
	}
}

// GradeQuiz scores answers against quiz. Answers must cover every question exactly once.
func GradeQuiz(lessonID string, quiz *domain.Quiz, answers []domain.Answer) (domain.QuizResult, error) {
	if quiz == nil {
		return domain.QuizResult{}, domain.ErrQuizMissing
	}
	if len(quiz.Questions) == 0 {
		return domain.QuizResult{}, domain.ErrQuizEmpty
	}

	questions := make(map[string]domain.Question, len(quiz.Questions))
	for _, q := range quiz.Questions {
		if _, dup := questions[q.ID]; dup {
			return domain.QuizResult{}, domain.DuplicateQuestionError(q.ID)
		}
		questions[q.ID] = q
	}
	answered := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		answered[a.QuestionID] = struct{}{}
	}
	if len(answered) != len(questions) || len(answers) != len(questions) {
		return domain.QuizResult{}, domain.ErrAnswerCount
	}

	results := make([]domain.QuestionResult, 0, len(answers))
	correct := 0
	for _, a := range answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			return domain.QuizResult{}, domain.UnknownQuestionError(a.QuestionID)
		}
		isCorrect := a.SelectedAnswer == q.CorrectAnswer
		if isCorrect {
			correct++
		}
		results = append(results, domain.QuestionResult{
			QuestionID:     a.QuestionID,
			IsCorrect:      isCorrect,
			SelectedAnswer: a.SelectedAnswer,
			CorrectAnswer:  q.CorrectAnswer,
			Explanation:    q.Explanation,
		})
	}

	total := len(quiz.Questions)
	score := int(math.Round(float64(correct) / float64(total) * 100))
	passing := DefaultPassingScore
	if quiz.PassingScore != nil {
		passing = *quiz.PassingScore
	}
	passed := score >= passing
	bonus := 0
	if passed {
		bonus = QuizBonus(score)
	}

	return domain.QuizResult{
		LessonID:       lessonID,
		Score:          score,
		Passed:         passed,
		TotalQuestions: total,
		CorrectAnswers: correct,
		XPBonus:        bonus,
		Results:        results,
	}, nil
}

// LessonCompletionResult reports what passing a lesson granted.
type LessonCompletionResult struct {
	FirstCompletion bool           `json:"firstCompletion"`
	XPAwarded       int            `json:"xpAwarded"`
	LeveledUp       bool           `json:"leveledUp"`
	Badges          []domain.Badge `json:"badges"`
}

// QuizService grades lesson quizzes and records lesson completion.
type QuizService struct {
	lessons     LessonRepository
	completions LessonCompletionStore
	progress    *ProgressService
	now         func() time.Time
	logger      *zap.Logger
}

// SubmitQuiz grades a submission for the lesson's quiz. It does not touch progress.
func (s *QuizService) SubmitQuiz(ctx context.Context, lessonID, userID string, answers []domain.Answer) (domain.QuizResult, error) {
	lesson, err := s.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		return domain.QuizResult{}, err
	}
	result, err := GradeQuiz(lesson.ID, lesson.Quiz, answers)
	if err != nil {
		return domain.QuizResult{}, err
	}
	s.logger.Debug("quiz graded",
		zap.String("lesson_id", lessonID),
		zap.String("user_id", userID),
		zap.Int("score", result.Score),
		zap.Bool("passed", result.Passed),
	)
	return result, nil
}

// CompleteLesson applies a passed quiz result: the first pass counts the lesson and
// grants its XP reward, every pass grants the quiz bonus. Failed results change nothing.
func (s *QuizService) CompleteLesson(ctx context.Context, userID string, result domain.QuizResult) (LessonCompletionResult, error) {
	out := LessonCompletionResult{Badges: []domain.Badge{}}
	if !result.Passed {
		return out, nil
	}

	lesson, err := s.lessons.GetLesson(ctx, result.LessonID)
	if err != nil {
		return out, err
	}
	if _, err := s.progress.EnsureProgress(ctx, userID); err != nil {
		return out, err
	}

	err = s.completions.InsertLessonCompletion(ctx, domain.LessonCompletion{
		UserID:      userID,
		LessonID:    lesson.ID,
		CompletedAt: s.now(),
	})
	switch {
	case err == nil:
		out.FirstCompletion = true
		if err := s.progress.store.IncrementLessonsCompleted(ctx, userID); err != nil {
			return out, fmt.Errorf("count lesson: %w", err)
		}
	case errors.Is(err, domain.ErrConflict):
	default:
		return out, fmt.Errorf("record lesson completion: %w", err)
	}

	xp := result.XPBonus
	if out.FirstCompletion {
		xp += lesson.XPReward
	}
	if xp > 0 {
		awarded, _, err := s.progress.AwardXP(ctx, userID, xp)
		if err != nil {
			return out, err
		}
		out.XPAwarded = awarded.XPAdded
		out.LeveledUp = awarded.LeveledUp
		if awarded.Badges != nil {
			out.Badges = awarded.Badges
		}
		return out, nil
	}
	if out.FirstCompletion {
		badges, err := s.progress.badges.CheckAndAwardBadges(ctx, userID)
		if err != nil {
			return out, err
		}
		out.Badges = badges
	}
	return out, nil
}
