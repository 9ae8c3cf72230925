package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"learnplay-engine/internal/domain"
)

// LeaderboardService records mini-game scores and ranks them.
type LeaderboardService struct {
	scores   ScoreStore
	ranks    RankSource
	index    ScoreIndex
	feed     *Feed
	pageSize int
	now      func() time.Time
	logger   *zap.Logger
}

// SubmitScore appends a score row, updates the rank index and notifies feed subscribers.
func (s *LeaderboardService) SubmitScore(ctx context.Context, userID, gameType string, score int, level *int, metadata map[string]any) (domain.GameScore, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(gameType) == "" {
		return domain.GameScore{}, fmt.Errorf("%w: user id and game type are required", domain.ErrValidation)
	}

	row := domain.GameScore{
		ID:        uuid.NewString(),
		UserID:    userID,
		GameType:  gameType,
		Score:     score,
		Level:     level,
		Metadata:  metadata,
		CreatedAt: s.now(),
	}
	if err := s.scores.InsertScore(ctx, row); err != nil {
		return domain.GameScore{}, fmt.Errorf("insert score: %w", err)
	}

	if s.index != nil {
		if err := s.index.Add(ctx, row); err != nil {
			s.logger.Warn("score index update failed", zap.String("game_type", gameType), zap.Error(err))
		}
	}
	s.publish(ctx, gameType)
	return row, nil
}

// DeleteScore removes a score row and re-derives the index for its game type.
func (s *LeaderboardService) DeleteScore(ctx context.Context, id string) error {
	row, err := s.scores.DeleteScore(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Reindex(ctx, row.GameType); err != nil {
		s.logger.Warn("score index rebuild failed", zap.String("game_type", row.GameType), zap.Error(err))
	}
	s.publish(ctx, row.GameType)
	return nil
}

// reindexAttempts bounds retries when scores keep arriving during a rebuild.
const reindexAttempts = 5

// Reindex rebuilds the rank index of one game type from the score log.
// A rebuild raced by a new score is retried from a fresh snapshot.
func (s *LeaderboardService) Reindex(ctx context.Context, gameType string) error {
	if s.index == nil {
		return nil
	}
	for attempt := 0; attempt < reindexAttempts; attempt++ {
		version, err := s.index.Version(ctx, gameType)
		if err != nil {
			return err
		}
		rows, err := s.scores.GameTypeScores(ctx, gameType)
		if err != nil {
			return err
		}
		err = s.index.Rebuild(ctx, gameType, version, rows)
		if !errors.Is(err, ErrIndexStale) {
			return err
		}
		s.logger.Debug("index rebuild raced by new score, retrying",
			zap.String("game_type", gameType), zap.Int("attempt", attempt+1))
	}
	return fmt.Errorf("reindex %s: %w", gameType, ErrIndexStale)
}

// ReindexAll rebuilds the rank index of every game type.
func (s *LeaderboardService) ReindexAll(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	gameTypes, err := s.scores.GameTypes(ctx)
	if err != nil {
		return err
	}
	for _, gt := range gameTypes {
		if err := s.Reindex(ctx, gt); err != nil {
			return fmt.Errorf("reindex %s: %w", gt, err)
		}
	}
	s.logger.Info("leaderboard index rebuilt", zap.Int("game_types", len(gameTypes)))
	return nil
}

// TopScores ranks every score row in scope.
func (s *LeaderboardService) TopScores(ctx context.Context, scope domain.Scope, limit, offset int, viewerUserID string) (domain.LeaderboardPage, error) {
	if err := validatePage(scope, limit, offset); err != nil {
		return domain.LeaderboardPage{}, err
	}
	rows, err := s.scores.ListScores(ctx, scope, limit, offset)
	if err != nil {
		return domain.LeaderboardPage{}, err
	}
	total, err := s.scores.CountScores(ctx, scope)
	if err != nil {
		return domain.LeaderboardPage{}, err
	}
	return domain.LeaderboardPage{
		GameType: scope.GameType,
		Level:    scope.Level,
		Entries:  RankEntries(rows, offset, viewerUserID),
		Total:    total,
	}, nil
}

// TopScoresUniqueUsers ranks each user's best score in scope; Total counts distinct users.
func (s *LeaderboardService) TopScoresUniqueUsers(ctx context.Context, scope domain.Scope, limit, offset int, viewerUserID string) (domain.LeaderboardPage, error) {
	if err := validatePage(scope, limit, offset); err != nil {
		return domain.LeaderboardPage{}, err
	}
	rows, err := s.ranks.BestScores(ctx, scope, limit, offset)
	if err != nil {
		return domain.LeaderboardPage{}, err
	}
	total, err := s.ranks.CountRankedUsers(ctx, scope)
	if err != nil {
		return domain.LeaderboardPage{}, err
	}
	return domain.LeaderboardPage{
		GameType: scope.GameType,
		Level:    scope.Level,
		Entries:  RankEntries(rows, offset, viewerUserID),
		Total:    total,
	}, nil
}

// UserRank returns 1 + the number of other users with a strictly higher best score,
// or 0 when the user has no score in scope. Equal bests share a rank.
func (s *LeaderboardService) UserRank(ctx context.Context, userID string, scope domain.Scope) (int, error) {
	best, ok, err := s.ranks.BestScore(ctx, scope, userID)
	if err != nil || !ok {
		return 0, err
	}
	above, err := s.ranks.CountUsersAbove(ctx, scope, best.Score)
	if err != nil {
		return 0, err
	}
	return above + 1, nil
}

// PersonalBests reports the user's best score per game type, ordered by game type.
func (s *LeaderboardService) PersonalBests(ctx context.Context, userID string) ([]domain.PersonalBest, error) {
	rows, err := s.scores.UserScores(ctx, userID)
	if err != nil {
		return nil, err
	}

	best := make(map[string]domain.GameScore)
	attempts := make(map[string]int)
	for _, r := range rows {
		attempts[r.GameType]++
		if cur, ok := best[r.GameType]; !ok || Outranks(r, cur) {
			best[r.GameType] = r
		}
	}

	out := make([]domain.PersonalBest, 0, len(best))
	for gameType, r := range best {
		out = append(out, domain.PersonalBest{
			GameType:      gameType,
			BestScore:     r.Score,
			Level:         r.Level,
			AchievedAt:    r.CreatedAt,
			TotalAttempts: attempts[gameType],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameType < out[j].GameType })
	return out, nil
}

// Subscribe streams the top unique-user page of gameType as scores arrive.
func (s *LeaderboardService) Subscribe(ctx context.Context, gameType string) (<-chan domain.LeaderboardPage, func(), error) {
	if s.feed == nil {
		return nil, nil, fmt.Errorf("%w: live leaderboard disabled", domain.ErrInvalidRequest)
	}
	page, err := s.TopScoresUniqueUsers(ctx, domain.Scope{GameType: gameType}, s.pageSize, 0, "")
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.Subscribe(gameType, page)
	return ch, cancel, nil
}

func (s *LeaderboardService) publish(ctx context.Context, gameType string) {
	if s.feed == nil || !s.feed.HasSubscribers(gameType) {
		return
	}
	page, err := s.TopScoresUniqueUsers(ctx, domain.Scope{GameType: gameType}, s.pageSize, 0, "")
	if err != nil {
		s.logger.Warn("leaderboard feed refresh failed", zap.String("game_type", gameType), zap.Error(err))
		return
	}
	s.feed.Publish(gameType, page)
}

func validatePage(scope domain.Scope, limit, offset int) error {
	if scope.GameType == "" {
		return fmt.Errorf("%w: game type is required", domain.ErrValidation)
	}
	if limit <= 0 || offset < 0 {
		return fmt.Errorf("%w: limit must be positive and offset non-negative", domain.ErrValidation)
	}
	return nil
}
