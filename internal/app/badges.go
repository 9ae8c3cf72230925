package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"learnplay-engine/internal/domain"
)

// BadgeService evaluates the badge catalog against user progress.
type BadgeService struct {
	store interface {
		ProgressStore
		BadgeStore
	}
	now    func() time.Time
	logger *zap.Logger
}

// CheckAndAwardBadges awards every unearned badge whose requirements the user now meets
// and returns exactly the badges awarded by this call.
//
// Badge XP bonuses go through the store's atomic increment and leave level/title
// untouched; they catch up on the next AddXP or Checkin.
func (s *BadgeService) CheckAndAwardBadges(ctx context.Context, userID string) ([]domain.Badge, error) {
	awarded := []domain.Badge{}

	progress, ok, err := s.store.FindProgress(ctx, userID)
	if err != nil || !ok {
		return awarded, err
	}

	catalog, err := s.store.ListBadges(ctx)
	if err != nil {
		return awarded, fmt.Errorf("list badges: %w", err)
	}
	owned, err := s.store.ListUserBadges(ctx, userID)
	if err != nil {
		return awarded, fmt.Errorf("list user badges: %w", err)
	}
	earned := make(map[string]struct{}, len(owned))
	for _, ub := range owned {
		earned[ub.BadgeID] = struct{}{}
	}

	for _, badge := range catalog {
		if _, ok := earned[badge.ID]; ok {
			continue
		}
		if !badge.Requirements.SatisfiedBy(progress) {
			continue
		}

		err := s.store.InsertUserBadge(ctx, domain.UserBadge{
			ID:       uuid.NewString(),
			UserID:   userID,
			BadgeID:  badge.ID,
			EarnedAt: s.now(),
		})
		if errors.Is(err, domain.ErrConflict) {
			// Awarded by a concurrent evaluation; its bonus was applied there.
			continue
		}
		if err != nil {
			return awarded, fmt.Errorf("award badge %s: %w", badge.Slug, err)
		}
		awarded = append(awarded, badge)

		if badge.XPBonus > 0 {
			if _, err := s.store.IncrementXP(ctx, userID, badge.XPBonus); err != nil {
				return awarded, fmt.Errorf("badge bonus %s: %w", badge.Slug, err)
			}
		}
		s.logger.Info("badge awarded",
			zap.String("user_id", userID),
			zap.String("badge", badge.Slug),
			zap.Int("xp_bonus", badge.XPBonus),
		)
	}
	return awarded, nil
}

// UserBadges lists the badges a user has earned, in award order.
func (s *BadgeService) UserBadges(ctx context.Context, userID string) ([]domain.EarnedBadge, error) {
	owned, err := s.store.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.store.ListBadges(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Badge, len(catalog))
	for _, b := range catalog {
		byID[b.ID] = b
	}

	out := make([]domain.EarnedBadge, 0, len(owned))
	for _, ub := range owned {
		badge, ok := byID[ub.BadgeID]
		if !ok {
			continue
		}
		out = append(out, domain.EarnedBadge{Badge: badge, EarnedAt: ub.EarnedAt})
	}
	return out, nil
}

// SeedCatalog upserts catalog entries, typically from config at startup.
func (s *BadgeService) SeedCatalog(ctx context.Context, badges []domain.Badge) error {
	for _, b := range badges {
		if b.ID == "" || b.Slug == "" {
			return fmt.Errorf("%w: badge needs id and slug", domain.ErrValidation)
		}
		if b.XPBonus < 0 {
			return fmt.Errorf("%w: badge %s has negative xp bonus", domain.ErrValidation, b.Slug)
		}
		if err := s.store.UpsertBadge(ctx, b); err != nil {
			return fmt.Errorf("seed badge %s: %w", b.Slug, err)
		}
	}
	return nil
}
