package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"learnplay-engine/internal/domain"
)

// CheckinResult is returned by Checkin.
type CheckinResult struct {
	CurrentStreak    int  `json:"currentStreak"`
	StreakBonusXP    int  `json:"streakBonusXp"`
	AlreadyCheckedIn bool `json:"alreadyCheckedIn"`
}

// StreakBonus is the XP granted for reaching a streak length.
func StreakBonus(streak int) int {
	switch {
	case streak >= 30:
		return 100
	case streak >= 14:
		return 50
	case streak >= 7:
		return 25
	case streak >= 3:
		return 10
	default:
		return 5
	}
}

// StreakService tracks daily check-ins.
type StreakService struct {
	store interface {
		ProgressStore
		StreakStore
	}
	badges   *BadgeService
	now      func() time.Time
	location *time.Location
	logger   *zap.Logger
}

// StartOfDay normalises t to midnight of its calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Checkin records today's check-in, extends or resets the streak and grants the bonus.
//
// The (user, day) uniqueness of the streak log is the only guard against
// concurrent check-ins: whoever loses the insert gets the already-checked-in result.
func (s *StreakService) Checkin(ctx context.Context, userID string) (CheckinResult, error) {
	now := s.now()
	today := StartOfDay(now, s.location)

	progress, exists, err := s.store.FindProgress(ctx, userID)
	if err != nil {
		return CheckinResult{}, err
	}
	if !exists {
		progress = NewProgress(userID, now)
	}

	done, err := s.store.HasStreakLog(ctx, userID, today)
	if err != nil {
		return CheckinResult{}, err
	}
	if done {
		return CheckinResult{CurrentStreak: progress.CurrentStreak, AlreadyCheckedIn: true}, nil
	}

	continued, err := s.store.HasStreakLog(ctx, userID, today.AddDate(0, 0, -1))
	if err != nil {
		return CheckinResult{}, err
	}
	streak := 1
	if continued {
		streak = progress.CurrentStreak + 1
	}
	bonus := StreakBonus(streak)

	err = s.store.InsertStreakLog(ctx, domain.StreakLog{UserID: userID, Date: today, BonusXP: bonus, CreatedAt: now})
	if errors.Is(err, domain.ErrConflict) {
		return s.lostRace(ctx, userID)
	}
	if err != nil {
		return CheckinResult{}, fmt.Errorf("insert streak log: %w", err)
	}

	if !exists {
		if err := s.store.CreateProgress(ctx, progress); err != nil && !errors.Is(err, domain.ErrConflict) {
			return CheckinResult{}, fmt.Errorf("create progress: %w", err)
		}
	}
	longest := progress.LongestStreak
	if streak > longest {
		longest = streak
	}
	if err := s.store.UpdateStreak(ctx, userID, streak, longest, now); err != nil {
		return CheckinResult{}, fmt.Errorf("update streak: %w", err)
	}
	total, err := s.store.IncrementXP(ctx, userID, bonus)
	if err != nil {
		return CheckinResult{}, fmt.Errorf("add streak bonus: %w", err)
	}
	level := LevelForXP(total)
	if err := s.store.UpdateLevel(ctx, userID, total, level, TitleForLevel(level), now); err != nil {
		return CheckinResult{}, fmt.Errorf("update level: %w", err)
	}

	if _, err := s.badges.CheckAndAwardBadges(ctx, userID); err != nil {
		s.logger.Warn("badge evaluation after check-in failed", zap.String("user_id", userID), zap.Error(err))
	}

	return CheckinResult{CurrentStreak: streak, StreakBonusXP: bonus}, nil
}

func (s *StreakService) lostRace(ctx context.Context, userID string) (CheckinResult, error) {
	s.logger.Debug("concurrent check-in lost the streak log insert", zap.String("user_id", userID))
	progress, _, err := s.store.FindProgress(ctx, userID)
	if err != nil {
		return CheckinResult{}, err
	}
	return CheckinResult{CurrentStreak: progress.CurrentStreak, AlreadyCheckedIn: true}, nil
}
