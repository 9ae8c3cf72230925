package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"learnplay-engine/internal/app"
	"learnplay-engine/internal/domain"
)

// Store is an in-memory implementation of app.Store.
// It enforces the same unique keys as the Postgres schema.
type Store struct {
	mu          sync.RWMutex
	progress    map[string]domain.UserProgress
	streakLogs  map[string]domain.StreakLog
	badges      []domain.Badge
	userBadges  map[string][]domain.UserBadge
	completions map[string]domain.LessonCompletion
	scores      []domain.GameScore
}

var _ app.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		progress:    make(map[string]domain.UserProgress),
		streakLogs:  make(map[string]domain.StreakLog),
		userBadges:  make(map[string][]domain.UserBadge),
		completions: make(map[string]domain.LessonCompletion),
	}
}

func (s *Store) FindProgress(_ context.Context, userID string) (domain.UserProgress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[userID]
	return p, ok, nil
}

func (s *Store) CreateProgress(_ context.Context, progress domain.UserProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.progress[progress.UserID]; ok {
		return domain.ErrConflict
	}
	s.progress[progress.UserID] = progress
	return nil
}

func (s *Store) IncrementXP(_ context.Context, userID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[userID]
	if !ok {
		return 0, domain.ErrProgressNotFound
	}
	p.TotalXP += delta
	s.progress[userID] = p
	return p.TotalXP, nil
}

func (s *Store) UpdateLevel(_ context.Context, userID string, totalXP, level int, title string, lastActiveAt time.Time) error {
	return s.updateProgress(userID, func(p *domain.UserProgress) {
		if p.TotalXP != totalXP {
			return
		}
		p.Level = level
		p.LevelTitle = title
		p.LastActiveAt = lastActiveAt
	})
}

func (s *Store) UpdateStreak(_ context.Context, userID string, current, longest int, lastActiveAt time.Time) error {
	return s.updateProgress(userID, func(p *domain.UserProgress) {
		p.CurrentStreak = current
		p.LongestStreak = longest
		p.LastActiveAt = lastActiveAt
	})
}

func (s *Store) IncrementLessonsCompleted(_ context.Context, userID string) error {
	return s.updateProgress(userID, func(p *domain.UserProgress) {
		p.LessonsCompleted++
	})
}

func (s *Store) updateProgress(userID string, apply func(p *domain.UserProgress)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[userID]
	if !ok {
		return domain.ErrProgressNotFound
	}
	apply(&p)
	s.progress[userID] = p
	return nil
}

func (s *Store) HasStreakLog(_ context.Context, userID string, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.streakLogs[streakKey(userID, day)]
	return ok, nil
}

func (s *Store) InsertStreakLog(_ context.Context, log domain.StreakLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := streakKey(log.UserID, log.Date)
	if _, ok := s.streakLogs[key]; ok {
		return domain.ErrConflict
	}
	s.streakLogs[key] = log
	return nil
}

// StreakLogCount is a test helper.
func (s *Store) StreakLogCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.streakLogs {
		if l.UserID == userID {
			n++
		}
	}
	return n
}

func streakKey(userID string, day time.Time) string {
	return userID + "|" + strconv.FormatInt(day.Unix(), 10)
}

func (s *Store) ListBadges(_ context.Context) ([]domain.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Badge(nil), s.badges...), nil
}

func (s *Store) UpsertBadge(_ context.Context, badge domain.Badge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.badges {
		if s.badges[i].ID == badge.ID {
			s.badges[i] = badge
			return nil
		}
	}
	s.badges = append(s.badges, badge)
	return nil
}

func (s *Store) ListUserBadges(_ context.Context, userID string) ([]domain.UserBadge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.UserBadge(nil), s.userBadges[userID]...), nil
}

func (s *Store) InsertUserBadge(_ context.Context, award domain.UserBadge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ub := range s.userBadges[award.UserID] {
		if ub.BadgeID == award.BadgeID {
			return domain.ErrConflict
		}
	}
	s.userBadges[award.UserID] = append(s.userBadges[award.UserID], award)
	return nil
}

func (s *Store) InsertLessonCompletion(_ context.Context, completion domain.LessonCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := completion.UserID + "|" + completion.LessonID
	if _, ok := s.completions[key]; ok {
		return domain.ErrConflict
	}
	s.completions[key] = completion
	return nil
}

func (s *Store) InsertScore(_ context.Context, score domain.GameScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.scores {
		if existing.ID == score.ID {
			return domain.ErrConflict
		}
	}
	s.scores = append(s.scores, score)
	return nil
}

func (s *Store) DeleteScore(_ context.Context, id string) (domain.GameScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.scores {
		if existing.ID == id {
			s.scores = append(s.scores[:i], s.scores[i+1:]...)
			return existing, nil
		}
	}
	return domain.GameScore{}, domain.ErrScoreNotFound
}

func (s *Store) ListScores(_ context.Context, scope domain.Scope, limit, offset int) ([]domain.GameScore, error) {
	rows := s.inScope(scope)
	app.SortScores(rows)
	return app.Window(rows, limit, offset), nil
}

func (s *Store) CountScores(_ context.Context, scope domain.Scope) (int, error) {
	return len(s.inScope(scope)), nil
}

func (s *Store) UserScores(_ context.Context, userID string) ([]domain.GameScore, error) {
	return s.filter(func(g domain.GameScore) bool { return g.UserID == userID }), nil
}

func (s *Store) GameTypeScores(_ context.Context, gameType string) ([]domain.GameScore, error) {
	return s.inScope(domain.Scope{GameType: gameType}), nil
}

func (s *Store) GameTypes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	out := []string{}
	for _, g := range s.scores {
		if _, ok := seen[g.GameType]; ok {
			continue
		}
		seen[g.GameType] = struct{}{}
		out = append(out, g.GameType)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) BestScores(_ context.Context, scope domain.Scope, limit, offset int) ([]domain.GameScore, error) {
	return app.Window(s.best(scope), limit, offset), nil
}

func (s *Store) CountRankedUsers(_ context.Context, scope domain.Scope) (int, error) {
	return len(s.best(scope)), nil
}

func (s *Store) CountUsersAbove(_ context.Context, scope domain.Scope, score int) (int, error) {
	return app.CountAbove(s.best(scope), score), nil
}

func (s *Store) BestScore(_ context.Context, scope domain.Scope, userID string) (domain.GameScore, bool, error) {
	for _, g := range s.best(scope) {
		if g.UserID == userID {
			return g, true, nil
		}
	}
	return domain.GameScore{}, false, nil
}

func (s *Store) best(scope domain.Scope) []domain.GameScore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return app.ReduceToBest(s.scores, scope)
}

func (s *Store) inScope(scope domain.Scope) []domain.GameScore {
	return s.filter(scope.Matches)
}

func (s *Store) filter(keep func(domain.GameScore) bool) []domain.GameScore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.GameScore{}
	for _, g := range s.scores {
		if keep(g) {
			out = append(out, g)
		}
	}
	return out
}
