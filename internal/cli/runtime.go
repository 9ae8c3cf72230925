package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"learnplay-engine/internal/app"
	"learnplay-engine/internal/config"
	"learnplay-engine/internal/domain"
	"learnplay-engine/internal/infra/memory"
	"learnplay-engine/internal/infra/postgres"
	redisinfra "learnplay-engine/internal/infra/redis"
	"learnplay-engine/internal/logging"
)

// runtime holds the wired engine and the connections it owns.
type runtime struct {
	engine  *app.Engine
	feed    *app.Feed
	closers []func()
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func loadConfig(path string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

// buildRuntime picks Postgres or the in-memory store, Redis or process-local
// caching, migrates the schema and seeds the badge catalog.
func buildRuntime(ctx context.Context, cfg config.Config, logger *zap.Logger) (*runtime, error) {
	rt := &runtime{feed: app.NewFeed()}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("engine timezone: %w", err)
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	var (
		store  app.Store
		loader memory.LessonLoader = memory.NewStaticLessonLoader(sampleLessons())
		db     *bun.DB
	)
	if cfg.Postgres.URL != "" {
		db = postgres.OpenDB(cfg.Postgres.URL)
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		if err := runMigrations(ctx, db, logger); err != nil {
			rt.Close()
			return nil, err
		}
		store = postgres.NewStore(db)

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		loader = postgres.NewLessonLoader(pool)
	} else {
		logger.Warn("postgres not configured, using in-memory store")
		store = memory.NewStore()
	}

	lessonTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		lessons app.LessonRepository
		index   app.ScoreIndex
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		lessons = redisinfra.NewLessonRepository(client, loader, lessonTTL)
		index = redisinfra.NewLeaderboardIndex(client)
	} else {
		lessons = memory.NewLessonRepository(loader, lessonTTL)
	}

	rt.engine = app.NewEngine(store, lessons, app.Options{
		Logger:       logger,
		Location:     loc,
		Index:        index,
		Feed:         rt.feed,
		FeedPageSize: cfg.Engine.FeedPageSize,
	})
	if err := rt.engine.Badges.SeedCatalog(ctx, catalog); err != nil {
		rt.Close()
		return nil, fmt.Errorf("seed badges: %w", err)
	}
	logger.Info("engine ready",
		zap.Bool("postgres", db != nil),
		zap.Bool("redis", index != nil),
		zap.Int("badges", len(catalog)),
		zap.String("timezone", loc.String()),
	)
	return rt, nil
}

// sampleLessons serves the in-memory mode; Postgres deployments load lessons from the lessons table.
func sampleLessons() map[string]domain.Lesson {
	return map[string]domain.Lesson{
		"lesson-1": {
			ID:       "lesson-1",
			Title:    "Greetings",
			XPReward: 20,
			Quiz: &domain.Quiz{
				Questions: []domain.Question{
					{ID: "q1", Prompt: "How do you say hello in Spanish?", CorrectAnswer: "hola"},
					{ID: "q2", Prompt: "How do you say goodbye in Spanish?", CorrectAnswer: "adios"},
					{ID: "q3", Prompt: "How do you say thank you in Spanish?", CorrectAnswer: "gracias"},
				},
			},
		},
	}
}
