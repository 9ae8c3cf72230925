package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"learnplay-engine/internal/domain"
)

// XPPerLevel is the width of one level bucket.
const XPPerLevel = 500

var levelTitles = []string{
	"Novice",
	"Learner",
	"Explorer",
	"Apprentice",
	"Scholar",
	"Adept",
	"Expert",
	"Master",
	"Sage",
	"Legend",
}

// LevelForXP maps accumulated XP to a level: floor(xp/500)+1.
// Negative XP is not clamped and yields a level below 1.
func LevelForXP(xp int) int {
	q := xp / XPPerLevel
	if xp < 0 && xp%XPPerLevel != 0 {
		q--
	}
	return q + 1
}

// TitleForLevel returns the display title. Levels outside the table get the highest title.
func TitleForLevel(level int) string {
	if level < 1 || level > len(levelTitles) {
		return levelTitles[len(levelTitles)-1]
	}
	return levelTitles[level-1]
}

// NewProgress returns the zero progress row for a user.
func NewProgress(userID string, now time.Time) domain.UserProgress {
	return domain.UserProgress{
		UserID:       userID,
		Level:        LevelForXP(0),
		LevelTitle:   TitleForLevel(LevelForXP(0)),
		LastActiveAt: now,
	}
}

// AddXPResult is the outcome of AddXP.
type AddXPResult struct {
	Progress  domain.UserProgress `json:"progress"`
	LeveledUp bool                `json:"leveledUp"`
	XPAdded   int                 `json:"xpAdded"`
}

// AwardResult is AddXP plus any badges the new total unlocked.
type AwardResult struct {
	AddXPResult
	Badges []domain.Badge `json:"badges"`
}

// ProgressService owns XP and level bookkeeping.
type ProgressService struct {
	store  ProgressStore
	badges *BadgeService
	now    func() time.Time
	logger *zap.Logger
}

// Progress returns the user's progress; ok is false when none exists.
func (s *ProgressService) Progress(ctx context.Context, userID string) (domain.UserProgress, bool, error) {
	return s.store.FindProgress(ctx, userID)
}

// EnsureProgress creates an empty progress row when the user has none.
func (s *ProgressService) EnsureProgress(ctx context.Context, userID string) (domain.UserProgress, error) {
	progress, ok, err := s.store.FindProgress(ctx, userID)
	if err != nil {
		return domain.UserProgress{}, err
	}
	if ok {
		return progress, nil
	}
	progress = NewProgress(userID, s.now())
	if err := s.store.CreateProgress(ctx, progress); err != nil && !errors.Is(err, domain.ErrConflict) {
		return domain.UserProgress{}, err
	}
	return progress, nil
}

// AddXP adds amount to the user's total and recomputes level and title.
// ok is false, with no error, when the user has no progress row.
func (s *ProgressService) AddXP(ctx context.Context, userID string, amount int) (AddXPResult, bool, error) {
	progress, ok, err := s.store.FindProgress(ctx, userID)
	if err != nil || !ok {
		return AddXPResult{}, false, err
	}

	newTotal, err := s.store.IncrementXP(ctx, userID, amount)
	if errors.Is(err, domain.ErrProgressNotFound) {
		return AddXPResult{}, false, nil
	}
	if err != nil {
		return AddXPResult{}, false, fmt.Errorf("add xp: %w", err)
	}

	oldLevel := LevelForXP(newTotal - amount)
	newLevel := LevelForXP(newTotal)
	now := s.now()
	if err := s.store.UpdateLevel(ctx, userID, newTotal, newLevel, TitleForLevel(newLevel), now); err != nil {
		return AddXPResult{}, false, fmt.Errorf("update level: %w", err)
	}

	progress.TotalXP = newTotal
	progress.Level = newLevel
	progress.LevelTitle = TitleForLevel(newLevel)
	progress.LastActiveAt = now

	result := AddXPResult{Progress: progress, LeveledUp: newLevel > oldLevel, XPAdded: amount}
	if result.LeveledUp {
		s.logger.Info("level up", zap.String("user_id", userID), zap.Int("level", newLevel))
	}
	return result, true, nil
}

// AwardXP is the XP-earning event: AddXP followed by badge evaluation.
func (s *ProgressService) AwardXP(ctx context.Context, userID string, amount int) (AwardResult, bool, error) {
	added, ok, err := s.AddXP(ctx, userID, amount)
	if err != nil || !ok {
		return AwardResult{}, ok, err
	}
	badges, err := s.badges.CheckAndAwardBadges(ctx, userID)
	if err != nil {
		return AwardResult{}, true, err
	}
	return AwardResult{AddXPResult: added, Badges: badges}, true, nil
}
