package app

import (
	"sort"

	"learnplay-engine/internal/domain"
)

// The deduplicated leaderboard is a two-stage pipeline: ReduceToBest collapses a
// scope to one row per user, then SortScores + Window order and paginate.
// Stores that can push this down (SQL, sorted sets) produce the same ordering.

// Outranks reports whether a sorts before b: higher score, then earlier, then lower id.
func Outranks(a, b domain.GameScore) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// ReduceToBest keeps each user's best row within scope.
func ReduceToBest(scores []domain.GameScore, scope domain.Scope) []domain.GameScore {
	best := make(map[string]domain.GameScore)
	for _, s := range scores {
		if !scope.Matches(s) {
			continue
		}
		if cur, ok := best[s.UserID]; !ok || Outranks(s, cur) {
			best[s.UserID] = s
		}
	}
	out := make([]domain.GameScore, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	SortScores(out)
	return out
}

// SortScores orders rows best first.
func SortScores(scores []domain.GameScore) {
	sort.Slice(scores, func(i, j int) bool { return Outranks(scores[i], scores[j]) })
}

// Window slices [offset, offset+limit) out of sorted rows.
func Window(scores []domain.GameScore, limit, offset int) []domain.GameScore {
	if offset >= len(scores) || limit <= 0 {
		return []domain.GameScore{}
	}
	end := len(scores)
	if limit < end-offset {
		end = offset + limit
	}
	return scores[offset:end]
}

// CountAbove counts rows scoring strictly more than score.
func CountAbove(scores []domain.GameScore, score int) int {
	n := 0
	for _, s := range scores {
		if s.Score > score {
			n++
		}
	}
	return n
}

// RankEntries numbers a page of rows starting at offset+1.
func RankEntries(scores []domain.GameScore, offset int, viewerUserID string) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, len(scores))
	for i, s := range scores {
		entries[i] = domain.LeaderboardEntry{
			Rank:          offset + i + 1,
			ScoreID:       s.ID,
			UserID:        s.UserID,
			Score:         s.Score,
			Level:         s.Level,
			CreatedAt:     s.CreatedAt,
			IsCurrentUser: viewerUserID != "" && s.UserID == viewerUserID,
		}
	}
	return entries
}
