package app_test

import (
	"context"
	"testing"
	"time"

	"learnplay-engine/internal/app"
	"learnplay-engine/internal/domain"
	"learnplay-engine/internal/infra/memory"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) advanceDays(n int) { c.now = c.now.AddDate(0, 0, n) }

type fixture struct {
	engine *app.Engine
	store  *memory.Store
	clock  *testClock
	feed   *app.Feed
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := &testClock{now: time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)}
	feed := app.NewFeed()
	lessons := memory.NewLessonRepository(memory.NewStaticLessonLoader(sampleLessons()), time.Minute)
	engine := app.NewEngine(store, lessons, app.Options{
		Now:          clock.Now,
		Feed:         feed,
		FeedPageSize: 5,
	})
	return &fixture{engine: engine, store: store, clock: clock, feed: feed}
}

func (f *fixture) seedProgress(t *testing.T, p domain.UserProgress) {
	t.Helper()
	if p.Level == 0 {
		p.Level = app.LevelForXP(p.TotalXP)
		p.LevelTitle = app.TitleForLevel(p.Level)
	}
	if err := f.store.CreateProgress(context.Background(), p); err != nil {
		t.Fatalf("seed progress: %v", err)
	}
}

func (f *fixture) progress(t *testing.T, userID string) domain.UserProgress {
	t.Helper()
	p, ok, err := f.store.FindProgress(context.Background(), userID)
	if err != nil || !ok {
		t.Fatalf("progress for %s: ok=%v err=%v", userID, ok, err)
	}
	return p
}

func intPtr(v int) *int { return &v }

func sampleLessons() map[string]domain.Lesson {
	questions := func(n int) []domain.Question {
		out := make([]domain.Question, n)
		for i := range out {
			out[i] = domain.Question{
				ID:            "q" + string(rune('a'+i)),
				CorrectAnswer: "yes",
				Explanation:   "because",
			}
		}
		return out
	}
	return map[string]domain.Lesson{
		"five":    {ID: "five", XPReward: 30, Quiz: &domain.Quiz{Questions: questions(5)}},
		"ten":     {ID: "ten", Quiz: &domain.Quiz{Questions: questions(10)}},
		"strict":  {ID: "strict", Quiz: &domain.Quiz{Questions: questions(5), PassingScore: intPtr(90)}},
		"no-quiz": {ID: "no-quiz"},
		"empty":   {ID: "empty", Quiz: &domain.Quiz{}},
	}
}

// answersFor answers the first correct questions right and the rest wrong.
func answersFor(n, correct int) []domain.Answer {
	out := make([]domain.Answer, n)
	for i := range out {
		selected := "no"
		if i < correct {
			selected = "yes"
		}
		out[i] = domain.Answer{QuestionID: "q" + string(rune('a'+i)), SelectedAnswer: selected}
	}
	return out
}
