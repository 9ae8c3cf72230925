package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers branch on these with errors.Is.
var (
	// ErrNotFound is returned when a referenced lesson or score does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest marks a malformed submission (e.g. a quiz answer set that does not match the quiz).
	ErrInvalidRequest = errors.New("invalid request")
	// ErrValidation marks input rejected before any state is touched.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned by stores when a unique key already exists.
	ErrConflict = errors.New("conflict")
)

var (
	// ErrLessonNotFound indicates the lesson could not be loaded.
	ErrLessonNotFound = fmt.Errorf("lesson %w", ErrNotFound)
	// ErrScoreNotFound indicates a game score id is unknown.
	ErrScoreNotFound = fmt.Errorf("game score %w", ErrNotFound)
	// ErrQuizMissing is returned when a lesson has no quiz attached.
	ErrQuizMissing = fmt.Errorf("%w: lesson has no quiz", ErrInvalidRequest)
	// ErrQuizEmpty is returned when a quiz has no questions.
	ErrQuizEmpty = fmt.Errorf("%w: quiz has no questions", ErrInvalidRequest)
	// ErrAnswerCount is returned when the answered questions do not cover the quiz exactly.
	ErrAnswerCount = fmt.Errorf("%w: answers do not match quiz questions", ErrInvalidRequest)
)

// UnknownQuestionError names a submitted question id that is not part of the quiz.
func UnknownQuestionError(questionID string) error {
	return fmt.Errorf("%w: question %q is not part of this quiz", ErrInvalidRequest, questionID)
}

// DuplicateQuestionError reports a quiz definition that repeats a question id.
func DuplicateQuestionError(questionID string) error {
	return fmt.Errorf("%w: quiz defines question %q more than once", ErrInvalidRequest, questionID)
}

// ErrProgressNotFound is returned by stores for a missing UserProgress row.
// Engine operations never surface it: a missing row is a defined empty result.
var ErrProgressNotFound = fmt.Errorf("user progress %w", ErrNotFound)
