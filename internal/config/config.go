package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"learnplay-engine/internal/domain"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
		// RateLimit is requests per minute per client IP; 0 disables limiting.
		RateLimit int `yaml:"rateLimit"`
	} `yaml:"server"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		// TTL of cached lesson content.
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Engine struct {
		Timezone        string `yaml:"timezone"`
		ReindexInterval string `yaml:"reindexInterval"`
		FeedPageSize    int    `yaml:"feedPageSize"`
	} `yaml:"engine"`
	Badges []Badge `yaml:"badges"`
}

// Badge is a catalog entry; Requirement uses the sparse form, e.g. {streak: 7}.
type Badge struct {
	ID          string         `yaml:"id"`
	Slug        string         `yaml:"slug"`
	Name        string         `yaml:"name"`
	Category    string         `yaml:"category"`
	XPBonus     int            `yaml:"xpBonus"`
	Requirement map[string]int `yaml:"requirement"`
}

// Load reads YAML config from path and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		cfg.Server.Port = v
	}
	if v, ok := os.LookupEnv("DATABASE_URL"); ok {
		cfg.Postgres.URL = v
	}
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	}
}

// Catalog converts the configured badges into domain badges.
func (c Config) Catalog() ([]domain.Badge, error) {
	out := make([]domain.Badge, 0, len(c.Badges))
	for _, b := range c.Badges {
		reqs, err := domain.ParseRequirements(b.Requirement)
		if err != nil {
			return nil, fmt.Errorf("badge %s: %w", b.Slug, err)
		}
		out = append(out, domain.Badge{
			ID:           b.ID,
			Slug:         b.Slug,
			Name:         b.Name,
			Category:     b.Category,
			Requirements: reqs,
			XPBonus:      b.XPBonus,
		})
	}
	return out, nil
}

// Location resolves the engine timezone, defaulting to UTC.
func (c Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Engine.Timezone)
	if tz == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(tz)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
