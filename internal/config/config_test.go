package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"learnplay-engine/internal/domain"
)

const sample = `
server:
  port: "9000"
  rateLimit: 120
log:
  level: debug
redis:
  addr: localhost:6379
quiz:
  ttl: 5m
engine:
  timezone: Europe/Berlin
  reindexInterval: 15m
  feedPageSize: 20
badges:
  - id: b1
    slug: first-lesson
    name: First Lesson
    category: learning
    xpBonus: 10
    requirement:
      lessonsCompleted: 1
  - id: b2
    slug: dedicated
    requirement:
      lessonsCompleted: 20
      streak: 7
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "DATABASE_URL", "REDIS_ADDR", "LOG_LEVEL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 120, cfg.Server.RateLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 20, cfg.Engine.FeedPageSize)
	assert.Equal(t, 15*time.Minute, TTLDuration(cfg.Engine.ReindexInterval, time.Hour))

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	badges, err := cfg.Catalog()
	require.NoError(t, err)
	require.Len(t, badges, 2)
	assert.Equal(t, "first-lesson", badges[0].Slug)
	assert.Equal(t, 10, badges[0].XPBonus)
	assert.Len(t, badges[1].Requirements, 2)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/app")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "postgres://u:p@db:5432/app", cfg.Postgres.URL)
	assert.Empty(t, cfg.Redis.Addr, "empty REDIS_ADDR disables redis")
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestCatalogRejectsUnknownRequirement(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
badges:
  - id: b9
    slug: quizzer
    requirement:
      quizzesPassed: 3
`))
	require.NoError(t, err)

	_, err = cfg.Catalog()
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Contains(t, err.Error(), "quizzer")
}

func TestLocationDefaultsToUTC(t *testing.T) {
	loc, err := Config{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestTTLDuration(t *testing.T) {
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
	assert.Equal(t, 90*time.Second, TTLDuration("90s", time.Minute))
}
