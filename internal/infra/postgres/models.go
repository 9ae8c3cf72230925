package postgres

import (
	"time"

	"github.com/uptrace/bun"
	"learnplay-engine/internal/domain"
)

type progressRow struct {
	bun.BaseModel `bun:"table:user_progress,alias:up"`

	UserID           string    `bun:"user_id,pk"`
	TotalXP          int       `bun:"total_xp,notnull"`
	Level            int       `bun:"level,notnull"`
	LevelTitle       string    `bun:"level_title,notnull"`
	CurrentStreak    int       `bun:"current_streak,notnull"`
	LongestStreak    int       `bun:"longest_streak,notnull"`
	LessonsCompleted int       `bun:"lessons_completed,notnull"`
	LastActiveAt     time.Time `bun:"last_active_at,notnull"`
}

func progressFromDomain(p domain.UserProgress) progressRow {
	return progressRow{
		UserID:           p.UserID,
		TotalXP:          p.TotalXP,
		Level:            p.Level,
		LevelTitle:       p.LevelTitle,
		CurrentStreak:    p.CurrentStreak,
		LongestStreak:    p.LongestStreak,
		LessonsCompleted: p.LessonsCompleted,
		LastActiveAt:     p.LastActiveAt,
	}
}

func (r progressRow) toDomain() domain.UserProgress {
	return domain.UserProgress{
		UserID:           r.UserID,
		TotalXP:          r.TotalXP,
		Level:            r.Level,
		LevelTitle:       r.LevelTitle,
		CurrentStreak:    r.CurrentStreak,
		LongestStreak:    r.LongestStreak,
		LessonsCompleted: r.LessonsCompleted,
		LastActiveAt:     r.LastActiveAt,
	}
}

type streakLogRow struct {
	bun.BaseModel `bun:"table:streak_logs,alias:sl"`

	UserID    string    `bun:"user_id,pk"`
	Day       time.Time `bun:"day,pk"`
	BonusXP   int       `bun:"bonus_xp,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type badgeRow struct {
	bun.BaseModel `bun:"table:badges,alias:b"`

	ID          string         `bun:"id,pk"`
	Slug        string         `bun:"slug,notnull"`
	Name        string         `bun:"name,notnull"`
	Category    string         `bun:"category,notnull"`
	Requirement map[string]int `bun:"requirement,type:jsonb,notnull"`
	XPBonus     int            `bun:"xp_bonus,notnull"`
}

func badgeFromDomain(b domain.Badge) badgeRow {
	return badgeRow{
		ID:          b.ID,
		Slug:        b.Slug,
		Name:        b.Name,
		Category:    b.Category,
		Requirement: b.Requirements.Map(),
		XPBonus:     b.XPBonus,
	}
}

func (r badgeRow) toDomain() (domain.Badge, error) {
	reqs, err := domain.ParseRequirements(r.Requirement)
	if err != nil {
		return domain.Badge{}, err
	}
	return domain.Badge{
		ID:           r.ID,
		Slug:         r.Slug,
		Name:         r.Name,
		Category:     r.Category,
		Requirements: reqs,
		XPBonus:      r.XPBonus,
	}, nil
}

type userBadgeRow struct {
	bun.BaseModel `bun:"table:user_badges,alias:ub"`

	ID       string    `bun:"id,pk"`
	UserID   string    `bun:"user_id,notnull"`
	BadgeID  string    `bun:"badge_id,notnull"`
	EarnedAt time.Time `bun:"earned_at,notnull"`
}

type lessonCompletionRow struct {
	bun.BaseModel `bun:"table:lesson_completions,alias:lc"`

	UserID      string    `bun:"user_id,pk"`
	LessonID    string    `bun:"lesson_id,pk"`
	CompletedAt time.Time `bun:"completed_at,notnull"`
}

type scoreRow struct {
	bun.BaseModel `bun:"table:game_scores,alias:gs"`

	ID        string         `bun:"id,pk"`
	UserID    string         `bun:"user_id,notnull"`
	GameType  string         `bun:"game_type,notnull"`
	Score     int            `bun:"score,notnull"`
	Level     *int           `bun:"level"`
	Metadata  map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt time.Time      `bun:"created_at,notnull"`
}

func scoreFromDomain(s domain.GameScore) scoreRow {
	return scoreRow{
		ID:        s.ID,
		UserID:    s.UserID,
		GameType:  s.GameType,
		Score:     s.Score,
		Level:     s.Level,
		Metadata:  s.Metadata,
		CreatedAt: s.CreatedAt,
	}
}

func (r scoreRow) toDomain() domain.GameScore {
	return domain.GameScore{
		ID:        r.ID,
		UserID:    r.UserID,
		GameType:  r.GameType,
		Score:     r.Score,
		Level:     r.Level,
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
	}
}

func scoresToDomain(rows []scoreRow) []domain.GameScore {
	out := make([]domain.GameScore, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}
