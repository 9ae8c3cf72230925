package app

import (
	"context"
	"errors"
	"time"

	"learnplay-engine/internal/domain"
)

// ProgressStore persists UserProgress rows.
//
// IncrementXP must be atomic at the store level and returns the new total.
// It fails with domain.ErrProgressNotFound when the row does not exist.
//
// UpdateLevel writes level, title and lastActiveAt only while total_xp still
// equals totalXP. A concurrent increment makes the write a no-op; its own
// UpdateLevel carries the level for the newer total.
type ProgressStore interface {
	FindProgress(ctx context.Context, userID string) (domain.UserProgress, bool, error)
	CreateProgress(ctx context.Context, progress domain.UserProgress) error
	IncrementXP(ctx context.Context, userID string, delta int) (int, error)
	UpdateLevel(ctx context.Context, userID string, totalXP, level int, title string, lastActiveAt time.Time) error
	UpdateStreak(ctx context.Context, userID string, current, longest int, lastActiveAt time.Time) error
	IncrementLessonsCompleted(ctx context.Context, userID string) error
}

// StreakStore holds one log per (user, day). InsertStreakLog returns
// domain.ErrConflict when the day is already logged.
type StreakStore interface {
	HasStreakLog(ctx context.Context, userID string, day time.Time) (bool, error)
	InsertStreakLog(ctx context.Context, log domain.StreakLog) error
}

// BadgeStore reads the catalog and records awards. InsertUserBadge returns
// domain.ErrConflict when (user, badge) already exists.
type BadgeStore interface {
	ListBadges(ctx context.Context) ([]domain.Badge, error)
	UpsertBadge(ctx context.Context, badge domain.Badge) error
	ListUserBadges(ctx context.Context, userID string) ([]domain.UserBadge, error)
	InsertUserBadge(ctx context.Context, award domain.UserBadge) error
}

// LessonCompletionStore records first-time lesson passes, unique per (user, lesson).
type LessonCompletionStore interface {
	InsertLessonCompletion(ctx context.Context, completion domain.LessonCompletion) error
}

// ScoreStore is the append-only GameScore log.
//
// ListScores orders by score descending, then creation time, then id.
type ScoreStore interface {
	InsertScore(ctx context.Context, score domain.GameScore) error
	DeleteScore(ctx context.Context, id string) (domain.GameScore, error)
	ListScores(ctx context.Context, scope domain.Scope, limit, offset int) ([]domain.GameScore, error)
	CountScores(ctx context.Context, scope domain.Scope) (int, error)
	UserScores(ctx context.Context, userID string) ([]domain.GameScore, error)
	GameTypeScores(ctx context.Context, gameType string) ([]domain.GameScore, error)
	GameTypes(ctx context.Context) ([]string, error)
}

// RankSource answers the per-user-best aggregations of a scope.
// BestScores returns one row per user, ordered like ListScores.
type RankSource interface {
	BestScores(ctx context.Context, scope domain.Scope, limit, offset int) ([]domain.GameScore, error)
	CountRankedUsers(ctx context.Context, scope domain.Scope) (int, error)
	CountUsersAbove(ctx context.Context, scope domain.Scope, score int) (int, error)
	BestScore(ctx context.Context, scope domain.Scope, userID string) (domain.GameScore, bool, error)
}

// ErrIndexStale is returned by ScoreIndex.Rebuild when the index changed after
// the given version was read.
var ErrIndexStale = errors.New("score index changed during rebuild")

// ScoreIndex is a derived RankSource kept next to the store (e.g. Redis sorted sets).
//
// Every Add bumps the game type's version. Rebuild replaces the game type only
// while the version still equals the one read before the scores were listed.
type ScoreIndex interface {
	RankSource
	Add(ctx context.Context, score domain.GameScore) error
	Version(ctx context.Context, gameType string) (int64, error)
	Rebuild(ctx context.Context, gameType string, version int64, scores []domain.GameScore) error
}

// LessonRepository loads lesson content (from cache/backing store).
type LessonRepository interface {
	GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
}

// Store is everything the engine persists.
type Store interface {
	ProgressStore
	StreakStore
	BadgeStore
	LessonCompletionStore
	ScoreStore
	RankSource
}
