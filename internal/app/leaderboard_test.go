package app_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"learnplay-engine/internal/app"
	"learnplay-engine/internal/domain"
)

func submit(t *testing.T, f *fixture, userID, gameType string, score int, level *int) domain.GameScore {
	t.Helper()
	row, err := f.engine.Leaderboards.SubmitScore(context.Background(), userID, gameType, score, level, nil)
	require.NoError(t, err)
	f.clock.now = f.clock.now.Add(time.Second)
	return row
}

func TestTopScoresRawMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	submit(t, f, "alice", "typing", 40, nil)
	submit(t, f, "bob", "typing", 90, nil)
	submit(t, f, "alice", "typing", 75, nil)
	submit(t, f, "carol", "memory", 99, nil)

	page, err := f.engine.Leaderboards.TopScores(ctx, domain.Scope{GameType: "typing"}, 2, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, 2, page.Entries[0].Rank)
	assert.Equal(t, 75, page.Entries[0].Score)
	assert.True(t, page.Entries[0].IsCurrentUser)
	assert.Equal(t, 3, page.Entries[1].Rank)
	assert.Equal(t, 40, page.Entries[1].Score)
}

func TestTopScoresHugeLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	submit(t, f, "alice", "typing", 40, nil)
	submit(t, f, "bob", "typing", 90, nil)
	submit(t, f, "carol", "typing", 75, nil)

	page, err := f.engine.Leaderboards.TopScores(ctx, domain.Scope{GameType: "typing"}, math.MaxInt, 1, "")
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, 2, page.Entries[0].Rank)

	unique, err := f.engine.Leaderboards.TopScoresUniqueUsers(ctx, domain.Scope{GameType: "typing"}, math.MaxInt, 2, "")
	require.NoError(t, err)
	require.Len(t, unique.Entries, 1)
	assert.Equal(t, "alice", unique.Entries[0].UserID)
}

func TestWindowBounds(t *testing.T) {
	rows := []domain.GameScore{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	assert.Len(t, app.Window(rows, math.MaxInt, 1), 2)
	assert.Len(t, app.Window(rows, 2, 0), 2)
	assert.Empty(t, app.Window(rows, 5, 3))
	assert.Empty(t, app.Window(rows, math.MaxInt, math.MaxInt))
}

func TestTopScoresFiltersByLevel(t *testing.T) {
	f := newFixture(t)
	submit(t, f, "alice", "typing", 40, intPtr(1))
	submit(t, f, "bob", "typing", 90, intPtr(2))

	page, err := f.engine.Leaderboards.TopScores(context.Background(), domain.Scope{GameType: "typing", Level: intPtr(1)}, 10, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "alice", page.Entries[0].UserID)
}

func TestTopScoresUniqueUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	submit(t, f, "alice", "typing", 40, nil)
	submit(t, f, "alice", "typing", 95, nil)
	submit(t, f, "bob", "typing", 90, nil)
	submit(t, f, "bob", "typing", 10, nil)
	submit(t, f, "carol", "typing", 60, nil)

	page, err := f.engine.Leaderboards.TopScoresUniqueUsers(ctx, domain.Scope{GameType: "typing"}, 10, 0, "bob")
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Entries, 3)
	assert.Equal(t, []string{"alice", "bob", "carol"}, []string{page.Entries[0].UserID, page.Entries[1].UserID, page.Entries[2].UserID})
	assert.Equal(t, []int{95, 90, 60}, []int{page.Entries[0].Score, page.Entries[1].Score, page.Entries[2].Score})
	assert.True(t, page.Entries[1].IsCurrentUser)

	second, err := f.engine.Leaderboards.TopScoresUniqueUsers(ctx, domain.Scope{GameType: "typing"}, 2, 2, "")
	require.NoError(t, err)
	require.Len(t, second.Entries, 1)
	assert.Equal(t, 3, second.Entries[0].Rank)
	assert.Equal(t, "carol", second.Entries[0].UserID)
}

func TestTopScoresUniqueUsersRandomised(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(7))
	users := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
	want := map[string]int{}
	for i := 0; i < 120; i++ {
		user := users[rnd.Intn(len(users))]
		score := rnd.Intn(1000)
		submit(t, f, user, "blitz", score, nil)
		if cur, ok := want[user]; !ok || score > cur {
			want[user] = score
		}
	}

	seen := map[string]bool{}
	prev := int(^uint(0) >> 1)
	for offset := 0; offset < len(want); offset += 4 {
		page, err := f.engine.Leaderboards.TopScoresUniqueUsers(ctx, domain.Scope{GameType: "blitz"}, 4, offset, "")
		require.NoError(t, err)
		assert.Equal(t, len(want), page.Total)
		for i, e := range page.Entries {
			assert.Equal(t, offset+i+1, e.Rank)
			assert.False(t, seen[e.UserID], "duplicate user %s", e.UserID)
			seen[e.UserID] = true
			assert.Equal(t, want[e.UserID], e.Score)
			assert.LessOrEqual(t, e.Score, prev)
			prev = e.Score
		}
	}
	assert.Len(t, seen, len(want))
}

func TestUserRank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := domain.Scope{GameType: "typing"}
	submit(t, f, "alice", "typing", 100, nil)
	submit(t, f, "alice", "typing", 20, nil)
	submit(t, f, "bob", "typing", 80, nil)
	submit(t, f, "carol", "typing", 80, nil)
	submit(t, f, "dave", "typing", 50, nil)
	submit(t, f, "dave", "typing", 120, intPtr(3))

	rank, err := f.engine.Leaderboards.UserRank(ctx, "ghost", scope)
	require.NoError(t, err)
	assert.Equal(t, 0, rank)

	for user, want := range map[string]int{"dave": 1, "alice": 2, "bob": 3, "carol": 3} {
		rank, err := f.engine.Leaderboards.UserRank(ctx, user, scope)
		require.NoError(t, err)
		assert.Equal(t, want, rank, user)
	}

	rank, err = f.engine.Leaderboards.UserRank(ctx, "alice", domain.Scope{GameType: "typing", Level: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, 0, rank)
}

func TestPersonalBests(t *testing.T) {
	f := newFixture(t)
	submit(t, f, "alice", "typing", 40, intPtr(1))
	best := submit(t, f, "alice", "typing", 90, intPtr(2))
	submit(t, f, "alice", "typing", 90, intPtr(3))
	submit(t, f, "alice", "memory", 7, nil)
	submit(t, f, "bob", "typing", 100, nil)

	bests, err := f.engine.Leaderboards.PersonalBests(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, bests, 2)

	assert.Equal(t, "memory", bests[0].GameType)
	assert.Equal(t, 1, bests[0].TotalAttempts)
	assert.Equal(t, "typing", bests[1].GameType)
	assert.Equal(t, 90, bests[1].BestScore)
	assert.Equal(t, 3, bests[1].TotalAttempts)
	assert.Equal(t, 2, *bests[1].Level)
	assert.Equal(t, best.CreatedAt, bests[1].AchievedAt)
}

func TestDeleteScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	row := submit(t, f, "alice", "typing", 40, nil)

	require.NoError(t, f.engine.Leaderboards.DeleteScore(ctx, row.ID))
	err := f.engine.Leaderboards.DeleteScore(ctx, row.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	rank, err := f.engine.Leaderboards.UserRank(ctx, "alice", domain.Scope{GameType: "typing"})
	require.NoError(t, err)
	assert.Equal(t, 0, rank)
}

func TestLeaderboardValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Leaderboards.SubmitScore(ctx, "", "typing", 1, nil, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = f.engine.Leaderboards.TopScores(ctx, domain.Scope{GameType: "typing"}, 0, 0, "")
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = f.engine.Leaderboards.TopScoresUniqueUsers(ctx, domain.Scope{}, 10, 0, "")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestSubscribeReceivesLeaderboardUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ch, cancel, err := f.engine.Leaderboards.Subscribe(ctx, "typing")
	require.NoError(t, err)
	defer cancel()

	initial := <-ch
	assert.Empty(t, initial.Entries)

	submit(t, f, "alice", "typing", 42, nil)
	update := <-ch
	require.Len(t, update.Entries, 1)
	assert.Equal(t, 42, update.Entries[0].Score)

	submit(t, f, "bob", "memory", 10, nil)
	select {
	case page := <-ch:
		t.Fatalf("unexpected update for other game type: %+v", page)
	default:
	}
}

func TestFeedDropsStalePages(t *testing.T) {
	feed := app.NewFeed()
	ch, cancel := feed.Subscribe("typing", domain.LeaderboardPage{})
	defer cancel()

	for i := 1; i <= 20; i++ {
		feed.Publish("typing", domain.LeaderboardPage{Total: i})
	}

	var last domain.LeaderboardPage
	for len(ch) > 0 {
		last = <-ch
	}
	assert.Equal(t, 20, last.Total)

	cancel()
	assert.False(t, feed.HasSubscribers("typing"))
}
