package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"learnplay-engine/internal/domain"
)

func badgeCatalog() []domain.Badge {
	return []domain.Badge{
		{ID: "b1", Slug: "first-lesson", Category: "learning", XPBonus: 10,
			Requirements: domain.Requirements{{Kind: domain.RequirementLessonsCompleted, Threshold: 1}}},
		{ID: "b2", Slug: "dedicated", Category: "streak", XPBonus: 50,
			Requirements: domain.Requirements{
				{Kind: domain.RequirementLessonsCompleted, Threshold: 20},
				{Kind: domain.RequirementStreak, Threshold: 7},
			}},
		{ID: "b3", Slug: "level-five", Category: "level",
			Requirements: domain.Requirements{{Kind: domain.RequirementLevel, Threshold: 5}}},
		{ID: "b4", Slug: "no-rule", Category: "misc", XPBonus: 99},
	}
}

func TestCheckAndAwardBadgesWithoutProgress(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Badges.SeedCatalog(context.Background(), badgeCatalog()))

	awarded, err := f.engine.Badges.CheckAndAwardBadges(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, awarded)
}

func TestCheckAndAwardBadgesOrSemantics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.Badges.SeedCatalog(ctx, badgeCatalog()))
	// streak alone satisfies "dedicated" even though lessons are far below 20
	f.seedProgress(t, domain.UserProgress{UserID: "u1", LessonsCompleted: 1, CurrentStreak: 7, TotalXP: 100})

	awarded, err := f.engine.Badges.CheckAndAwardBadges(ctx, "u1")
	require.NoError(t, err)

	slugs := make([]string, 0, len(awarded))
	for _, b := range awarded {
		slugs = append(slugs, b.Slug)
	}
	assert.ElementsMatch(t, []string{"first-lesson", "dedicated"}, slugs)
}

func TestCheckAndAwardBadgesIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.Badges.SeedCatalog(ctx, badgeCatalog()))
	f.seedProgress(t, domain.UserProgress{UserID: "u1", LessonsCompleted: 1})

	first, err := f.engine.Badges.CheckAndAwardBadges(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := f.engine.Badges.CheckAndAwardBadges(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, second)

	owned, err := f.engine.Badges.UserBadges(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestBadgeBonusDoesNotRecomputeLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.Badges.SeedCatalog(ctx, badgeCatalog()))
	f.seedProgress(t, domain.UserProgress{UserID: "u1", TotalXP: 495, LessonsCompleted: 1})

	_, err := f.engine.Badges.CheckAndAwardBadges(ctx, "u1")
	require.NoError(t, err)

	p := f.progress(t, "u1")
	assert.Equal(t, 505, p.TotalXP)
	assert.Equal(t, 1, p.Level, "level lags until the next AddXP or Checkin")

	res, ok, err := f.engine.Progress.AddXP(ctx, "u1", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, res.Progress.Level)
}

func TestConcurrentBadgeEvaluationAwardsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.Badges.SeedCatalog(ctx, badgeCatalog()))
	f.seedProgress(t, domain.UserProgress{UserID: "u1", LessonsCompleted: 1})

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			awarded, err := f.engine.Badges.CheckAndAwardBadges(ctx, "u1")
			assert.NoError(t, err)
			mu.Lock()
			total += len(awarded)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, total)
	assert.Equal(t, 10, f.progress(t, "u1").TotalXP)
}

func TestSeedCatalogValidates(t *testing.T) {
	f := newFixture(t)
	err := f.engine.Badges.SeedCatalog(context.Background(), []domain.Badge{{Slug: "nameless"}})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	err = f.engine.Badges.SeedCatalog(context.Background(), []domain.Badge{{ID: "x", Slug: "x", XPBonus: -1}})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
