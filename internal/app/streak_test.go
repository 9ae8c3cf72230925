package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"learnplay-engine/internal/app"
	"learnplay-engine/internal/domain"
)

func TestStreakBonusTable(t *testing.T) {
	want := func(streak int) int {
		switch {
		case streak <= 2:
			return 5
		case streak <= 6:
			return 10
		case streak <= 13:
			return 25
		case streak <= 29:
			return 50
		default:
			return 100
		}
	}
	for streak := 1; streak <= 60; streak++ {
		assert.Equal(t, want(streak), app.StreakBonus(streak), "streak=%d", streak)
	}
}

func TestCheckinTwiceSameDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProgress(t, domain.UserProgress{UserID: "u1"})

	first, err := f.engine.Streaks.Checkin(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, app.CheckinResult{CurrentStreak: 1, StreakBonusXP: 5}, first)

	f.clock.now = f.clock.now.Add(10 * time.Hour)
	second, err := f.engine.Streaks.Checkin(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, app.CheckinResult{CurrentStreak: 1, StreakBonusXP: 0, AlreadyCheckedIn: true}, second)

	assert.Equal(t, 1, f.store.StreakLogCount("u1"))
	assert.Equal(t, 5, f.progress(t, "u1").TotalXP)
}

func TestCheckinConsecutiveDaysExtendStreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProgress(t, domain.UserProgress{UserID: "u1"})

	var last app.CheckinResult
	for day := 1; day <= 7; day++ {
		res, err := f.engine.Streaks.Checkin(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, day, res.CurrentStreak)
		last = res
		f.clock.advanceDays(1)
	}
	assert.Equal(t, 25, last.StreakBonusXP)

	p := f.progress(t, "u1")
	assert.Equal(t, 7, p.CurrentStreak)
	assert.Equal(t, 7, p.LongestStreak)
	assert.Equal(t, 5+5+10+10+10+10+25, p.TotalXP)
}

func TestCheckinAfterGapResetsStreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProgress(t, domain.UserProgress{UserID: "u1"})

	for i := 0; i < 3; i++ {
		_, err := f.engine.Streaks.Checkin(ctx, "u1")
		require.NoError(t, err)
		f.clock.advanceDays(1)
	}
	f.clock.advanceDays(1) // skip a day

	res, err := f.engine.Streaks.Checkin(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, 5, res.StreakBonusXP)

	p := f.progress(t, "u1")
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 3, p.LongestStreak)
}

func TestCheckinNormalisesToCalendarDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProgress(t, domain.UserProgress{UserID: "u1"})

	f.clock.now = time.Date(2026, 10, 17, 23, 59, 0, 0, time.UTC)
	_, err := f.engine.Streaks.Checkin(ctx, "u1")
	require.NoError(t, err)

	f.clock.now = time.Date(2026, 10, 18, 0, 1, 0, 0, time.UTC)
	res, err := f.engine.Streaks.Checkin(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, res.AlreadyCheckedIn)
	assert.Equal(t, 2, res.CurrentStreak)
}

func TestCheckinWithoutProgressCreatesRow(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Streaks.Checkin(context.Background(), "newcomer")
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentStreak)
	assert.Equal(t, 5, res.StreakBonusXP)

	p := f.progress(t, "newcomer")
	assert.Equal(t, 5, p.TotalXP)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, 1, p.LongestStreak)
}

func TestCheckinRecomputesStaleLevel(t *testing.T) {
	f := newFixture(t)
	f.seedProgress(t, domain.UserProgress{UserID: "u1", TotalXP: 498, Level: 1, LevelTitle: "Novice"})

	_, err := f.engine.Streaks.Checkin(context.Background(), "u1")
	require.NoError(t, err)

	p := f.progress(t, "u1")
	assert.Equal(t, 503, p.TotalXP)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, "Learner", p.LevelTitle)
}

func TestConcurrentCheckinsGrantOneBonus(t *testing.T) {
	f := newFixture(t)
	f.seedProgress(t, domain.UserProgress{UserID: "u1"})

	var wg sync.WaitGroup
	results := make([]app.CheckinResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.engine.Streaks.Checkin(context.Background(), "u1")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, r := range results {
		if !r.AlreadyCheckedIn {
			granted++
		}
	}
	assert.Equal(t, 1, granted)
	assert.Equal(t, 1, f.store.StreakLogCount("u1"))
	assert.Equal(t, 5, f.progress(t, "u1").TotalXP)
}

func TestCheckinTriggersBadgeEvaluation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProgress(t, domain.UserProgress{UserID: "u1"})
	require.NoError(t, f.engine.Badges.SeedCatalog(ctx, []domain.Badge{
		{ID: "b-first", Slug: "first-step", Requirements: domain.Requirements{{Kind: domain.RequirementStreak, Threshold: 1}}, XPBonus: 20},
	}))

	_, err := f.engine.Streaks.Checkin(ctx, "u1")
	require.NoError(t, err)

	badges, err := f.engine.Badges.UserBadges(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, "first-step", badges[0].Badge.Slug)
	assert.Equal(t, 25, f.progress(t, "u1").TotalXP)
}
