package app

import (
	"time"

	"go.uber.org/zap"
)

// Options tunes an Engine. Zero values select defaults.
type Options struct {
	Logger *zap.Logger
	// Now is the clock; tests pin it for deterministic days.
	Now func() time.Time
	// Location decides where a calendar day starts for streaks. Defaults to UTC.
	Location *time.Location
	// Index, when set, serves the deduplicated leaderboard views instead of the store.
	Index ScoreIndex
	// Feed receives a fresh top page after each submitted score.
	Feed         *Feed
	FeedPageSize int
}

// Engine bundles the gamification services over one shared store.
type Engine struct {
	Progress     *ProgressService
	Streaks      *StreakService
	Badges       *BadgeService
	Quizzes      *QuizService
	Leaderboards *LeaderboardService
}

// NewEngine wires all services over store. lessons may be nil when quizzes are not served.
func NewEngine(store Store, lessons LessonRepository, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.FeedPageSize <= 0 {
		opts.FeedPageSize = 10
	}

	badges := &BadgeService{store: store, now: opts.Now, logger: opts.Logger.Named("badges")}
	progress := &ProgressService{store: store, badges: badges, now: opts.Now, logger: opts.Logger.Named("progress")}
	streaks := &StreakService{
		store:    store,
		badges:   badges,
		now:      opts.Now,
		location: opts.Location,
		logger:   opts.Logger.Named("streaks"),
	}
	quizzes := &QuizService{
		lessons:     lessons,
		completions: store,
		progress:    progress,
		now:         opts.Now,
		logger:      opts.Logger.Named("quizzes"),
	}

	var ranks RankSource = store
	if opts.Index != nil {
		ranks = opts.Index
	}
	leaderboards := &LeaderboardService{
		scores:   store,
		ranks:    ranks,
		index:    opts.Index,
		feed:     opts.Feed,
		pageSize: opts.FeedPageSize,
		now:      opts.Now,
		logger:   opts.Logger.Named("leaderboards"),
	}

	return &Engine{
		Progress:     progress,
		Streaks:      streaks,
		Badges:       badges,
		Quizzes:      quizzes,
		Leaderboards: leaderboards,
	}
}
