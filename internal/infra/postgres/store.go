package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"learnplay-engine/internal/app"
	"learnplay-engine/internal/domain"
)

const rankOrder = "score DESC, created_at ASC, id ASC"

// OpenDB opens a bun handle over the pgdriver connector.
func OpenDB(url string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(url)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Store persists gamification state in Postgres. Unique keys in the schema
// decide races: a duplicate insert surfaces as domain.ErrConflict.
type Store struct {
	db *bun.DB
}

var _ app.Store = (*Store)(nil)

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindProgress(ctx context.Context, userID string) (domain.UserProgress, bool, error) {
	var row progressRow
	err := s.db.NewSelect().Model(&row).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserProgress{}, false, nil
	}
	if err != nil {
		return domain.UserProgress{}, false, fmt.Errorf("find progress: %w", err)
	}
	return row.toDomain(), true, nil
}

func (s *Store) CreateProgress(ctx context.Context, progress domain.UserProgress) error {
	row := progressFromDomain(progress)
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	return mapInsertErr("create progress", err)
}

func (s *Store) IncrementXP(ctx context.Context, userID string, delta int) (int, error) {
	var total int
	err := s.db.NewUpdate().
		Model((*progressRow)(nil)).
		Set("total_xp = total_xp + ?", delta).
		Where("user_id = ?", userID).
		Returning("total_xp").
		Scan(ctx, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrProgressNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment xp: %w", err)
	}
	return total, nil
}

// UpdateLevel is guarded by total_xp, so zero affected rows means a newer
// increment won and is not an error.
func (s *Store) UpdateLevel(ctx context.Context, userID string, totalXP, level int, title string, lastActiveAt time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*progressRow)(nil)).
		Set("level = ?", level).
		Set("level_title = ?", title).
		Set("last_active_at = ?", lastActiveAt).
		Where("user_id = ?", userID).
		Where("total_xp = ?", totalXP).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update level: %w", err)
	}
	return nil
}

func (s *Store) UpdateStreak(ctx context.Context, userID string, current, longest int, lastActiveAt time.Time) error {
	q := s.db.NewUpdate().
		Model((*progressRow)(nil)).
		Set("current_streak = ?", current).
		Set("longest_streak = ?", longest).
		Set("last_active_at = ?", lastActiveAt).
		Where("user_id = ?", userID)
	return execProgressUpdate(ctx, "update streak", q)
}

func (s *Store) IncrementLessonsCompleted(ctx context.Context, userID string) error {
	q := s.db.NewUpdate().
		Model((*progressRow)(nil)).
		Set("lessons_completed = lessons_completed + 1").
		Where("user_id = ?", userID)
	return execProgressUpdate(ctx, "increment lessons completed", q)
}

func execProgressUpdate(ctx context.Context, op string, q *bun.UpdateQuery) error {
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrProgressNotFound
	}
	return nil
}

func (s *Store) HasStreakLog(ctx context.Context, userID string, day time.Time) (bool, error) {
	ok, err := s.db.NewSelect().
		Model((*streakLogRow)(nil)).
		Where("user_id = ?", userID).
		Where("day = ?", day).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("find streak log: %w", err)
	}
	return ok, nil
}

func (s *Store) InsertStreakLog(ctx context.Context, log domain.StreakLog) error {
	row := streakLogRow{UserID: log.UserID, Day: log.Date, BonusXP: log.BonusXP, CreatedAt: log.CreatedAt}
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	return mapInsertErr("insert streak log", err)
}

func (s *Store) ListBadges(ctx context.Context) ([]domain.Badge, error) {
	var rows []badgeRow
	if err := s.db.NewSelect().Model(&rows).Order("id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	out := make([]domain.Badge, 0, len(rows))
	for _, r := range rows {
		b, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("badge %s: %w", r.ID, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) UpsertBadge(ctx context.Context, badge domain.Badge) error {
	row := badgeFromDomain(badge)
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("slug = EXCLUDED.slug").
		Set("name = EXCLUDED.name").
		Set("category = EXCLUDED.category").
		Set("requirement = EXCLUDED.requirement").
		Set("xp_bonus = EXCLUDED.xp_bonus").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert badge %s: %w", badge.Slug, err)
	}
	return nil
}

func (s *Store) ListUserBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	var rows []userBadgeRow
	err := s.db.NewSelect().Model(&rows).Where("user_id = ?", userID).Order("earned_at", "id").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user badges: %w", err)
	}
	out := make([]domain.UserBadge, len(rows))
	for i, r := range rows {
		out[i] = domain.UserBadge{ID: r.ID, UserID: r.UserID, BadgeID: r.BadgeID, EarnedAt: r.EarnedAt}
	}
	return out, nil
}

func (s *Store) InsertUserBadge(ctx context.Context, award domain.UserBadge) error {
	row := userBadgeRow{ID: award.ID, UserID: award.UserID, BadgeID: award.BadgeID, EarnedAt: award.EarnedAt}
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	return mapInsertErr("insert user badge", err)
}

func (s *Store) InsertLessonCompletion(ctx context.Context, completion domain.LessonCompletion) error {
	row := lessonCompletionRow{UserID: completion.UserID, LessonID: completion.LessonID, CompletedAt: completion.CompletedAt}
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	return mapInsertErr("insert lesson completion", err)
}

func (s *Store) InsertScore(ctx context.Context, score domain.GameScore) error {
	row := scoreFromDomain(score)
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	return mapInsertErr("insert score", err)
}

func (s *Store) DeleteScore(ctx context.Context, id string) (domain.GameScore, error) {
	var row scoreRow
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(&row).Where("id = ?", id).For("UPDATE").Scan(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*scoreRow)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GameScore{}, domain.ErrScoreNotFound
	}
	if err != nil {
		return domain.GameScore{}, fmt.Errorf("delete score: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListScores(ctx context.Context, scope domain.Scope, limit, offset int) ([]domain.GameScore, error) {
	var rows []scoreRow
	err := s.db.NewSelect().
		Model(&rows).
		Apply(inScope(scope)).
		OrderExpr(rankOrder).
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return scoresToDomain(rows), nil
}

func (s *Store) CountScores(ctx context.Context, scope domain.Scope) (int, error) {
	n, err := s.db.NewSelect().Model((*scoreRow)(nil)).Apply(inScope(scope)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count scores: %w", err)
	}
	return n, nil
}

func (s *Store) UserScores(ctx context.Context, userID string) ([]domain.GameScore, error) {
	var rows []scoreRow
	err := s.db.NewSelect().Model(&rows).Where("user_id = ?", userID).OrderExpr("created_at ASC, id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("user scores: %w", err)
	}
	return scoresToDomain(rows), nil
}

func (s *Store) GameTypeScores(ctx context.Context, gameType string) ([]domain.GameScore, error) {
	var rows []scoreRow
	err := s.db.NewSelect().Model(&rows).Where("game_type = ?", gameType).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("game type scores: %w", err)
	}
	return scoresToDomain(rows), nil
}

func (s *Store) GameTypes(ctx context.Context) ([]string, error) {
	var out []string
	err := s.db.NewSelect().
		Model((*scoreRow)(nil)).
		Distinct().
		Column("game_type").
		Order("game_type").
		Scan(ctx, &out)
	if err != nil {
		return nil, fmt.Errorf("list game types: %w", err)
	}
	return out, nil
}

// BestScores pushes the per-user reduction down with DISTINCT ON and
// paginates the reduced set in the same ranking order.
func (s *Store) BestScores(ctx context.Context, scope domain.Scope, limit, offset int) ([]domain.GameScore, error) {
	best := s.db.NewSelect().
		Model((*scoreRow)(nil)).
		DistinctOn("user_id").
		Apply(inScope(scope)).
		OrderExpr("user_id, " + rankOrder)

	var rows []scoreRow
	err := s.db.NewSelect().
		Model(&rows).
		ModelTableExpr("(?) AS gs", best).
		OrderExpr(rankOrder).
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("best scores: %w", err)
	}
	return scoresToDomain(rows), nil
}

func (s *Store) CountRankedUsers(ctx context.Context, scope domain.Scope) (int, error) {
	var n int
	err := s.db.NewSelect().
		Model((*scoreRow)(nil)).
		ColumnExpr("COUNT(DISTINCT user_id)").
		Apply(inScope(scope)).
		Scan(ctx, &n)
	if err != nil {
		return 0, fmt.Errorf("count ranked users: %w", err)
	}
	return n, nil
}

// CountUsersAbove counts users with any row above score, which is the same
// as counting users whose best is above it.
func (s *Store) CountUsersAbove(ctx context.Context, scope domain.Scope, score int) (int, error) {
	var n int
	err := s.db.NewSelect().
		Model((*scoreRow)(nil)).
		ColumnExpr("COUNT(DISTINCT user_id)").
		Apply(inScope(scope)).
		Where("score > ?", score).
		Scan(ctx, &n)
	if err != nil {
		return 0, fmt.Errorf("count users above: %w", err)
	}
	return n, nil
}

func (s *Store) BestScore(ctx context.Context, scope domain.Scope, userID string) (domain.GameScore, bool, error) {
	var row scoreRow
	err := s.db.NewSelect().
		Model(&row).
		Apply(inScope(scope)).
		Where("user_id = ?", userID).
		OrderExpr(rankOrder).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GameScore{}, false, nil
	}
	if err != nil {
		return domain.GameScore{}, false, fmt.Errorf("best score: %w", err)
	}
	return row.toDomain(), true, nil
}

func inScope(scope domain.Scope) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("game_type = ?", scope.GameType)
		if scope.Level != nil {
			q = q.Where("level = ?", *scope.Level)
		}
		return q
	}
}

func mapInsertErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
