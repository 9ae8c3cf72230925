package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"learnplay-engine/internal/domain"
)

// LessonLoader loads lessons and their quiz JSONB from Postgres.
type LessonLoader struct {
	pool *pgxpool.Pool
}

func NewLessonLoader(pool *pgxpool.Pool) *LessonLoader {
	return &LessonLoader{pool: pool}
}

func (l *LessonLoader) LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	var (
		lesson domain.Lesson
		raw    []byte
	)
	err := l.pool.QueryRow(ctx, `SELECT id, title, xp_reward, quiz FROM lessons WHERE id=$1`, lessonID).
		Scan(&lesson.ID, &lesson.Title, &lesson.XPReward, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lesson{}, domain.ErrLessonNotFound
	}
	if err != nil {
		return domain.Lesson{}, fmt.Errorf("load lesson: %w", err)
	}
	if raw != nil {
		var quiz domain.Quiz
		if err := json.Unmarshal(raw, &quiz); err != nil {
			return domain.Lesson{}, fmt.Errorf("unmarshal quiz: %w", err)
		}
		lesson.Quiz = &quiz
	}
	return lesson, nil
}

// SaveLesson inserts or replaces a lesson row.
func (l *LessonLoader) SaveLesson(ctx context.Context, lesson domain.Lesson) error {
	var raw []byte
	if lesson.Quiz != nil {
		var err error
		if raw, err = json.Marshal(lesson.Quiz); err != nil {
			return fmt.Errorf("marshal quiz: %w", err)
		}
	}
	_, err := l.pool.Exec(ctx, `
		INSERT INTO lessons (id, title, xp_reward, quiz) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, xp_reward = EXCLUDED.xp_reward, quiz = EXCLUDED.quiz`,
		lesson.ID, lesson.Title, lesson.XPReward, raw)
	if err != nil {
		return fmt.Errorf("save lesson %s: %w", lesson.ID, err)
	}
	return nil
}
