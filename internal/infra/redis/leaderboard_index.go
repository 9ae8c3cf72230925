package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"
	"learnplay-engine/internal/app"
	"learnplay-engine/internal/domain"
)

// LeaderboardIndex keeps each user's best score per scope in Redis.
//
//	ZSET leaderboard:{gameType}:all           member=userID score=best
//	HASH leaderboard:{gameType}:all:best      userID -> best GameScore JSON
//	SET  leaderboard:{gameType}:scopes        every scope key written for the game type
//	STR  leaderboard:{gameType}:version       bumped by every Add, watched by Rebuild
//
// Scopes with a level use leaderboard:{gameType}:level:{n}. Equal scores keep
// the row that arrived first; ZREVRANGE orders equal scores by member.
type LeaderboardIndex struct {
	client *redis.Client
}

var _ app.ScoreIndex = (*LeaderboardIndex)(nil)

func NewLeaderboardIndex(client *redis.Client) *LeaderboardIndex {
	return &LeaderboardIndex{client: client}
}

// raiseBest bumps the game type version, then sets the member's score and row
// only when strictly higher.
var raiseBest = redis.NewScript(`
redis.call('INCR', KEYS[4])
local cur = redis.call('ZSCORE', KEYS[1], ARGV[1])
if cur and tonumber(cur) >= tonumber(ARGV[2]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
redis.call('SADD', KEYS[3], KEYS[1])
return 1
`)

func (ix *LeaderboardIndex) Add(ctx context.Context, score domain.GameScore) error {
	raw, err := json.Marshal(score)
	if err != nil {
		return err
	}
	scopes := []domain.Scope{{GameType: score.GameType}}
	if score.Level != nil {
		scopes = append(scopes, domain.Scope{GameType: score.GameType, Level: score.Level})
	}
	for _, scope := range scopes {
		key := scopeKey(scope)
		keys := []string{key, bestKey(key), registryKey(score.GameType), versionKey(score.GameType)}
		if err := raiseBest.Run(ctx, ix.client, keys, score.UserID, score.Score, raw).Err(); err != nil {
			return fmt.Errorf("index score: %w", err)
		}
	}
	return nil
}

// Version returns the current version of gameType; zero before the first Add.
func (ix *LeaderboardIndex) Version(ctx context.Context, gameType string) (int64, error) {
	v, err := ix.client.Get(ctx, versionKey(gameType)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read index version: %w", err)
	}
	return v, nil
}

// Rebuild replaces every scope of gameType with the bests derived from scores.
// It returns app.ErrIndexStale, writing nothing, when an Add landed after
// version was read.
func (ix *LeaderboardIndex) Rebuild(ctx context.Context, gameType string, version int64, scores []domain.GameScore) error {
	scopes := []domain.Scope{{GameType: gameType}}
	levels := map[int]bool{}
	for _, s := range scores {
		if s.Level != nil && !levels[*s.Level] {
			levels[*s.Level] = true
			level := *s.Level
			scopes = append(scopes, domain.Scope{GameType: gameType, Level: &level})
		}
	}

	err := ix.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey(gameType)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return app.ErrIndexStale
		}
		stale, err := tx.SMembers(ctx, registryKey(gameType)).Result()
		if err != nil {
			return fmt.Errorf("list scopes: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range stale {
				pipe.Del(ctx, key, bestKey(key))
			}
			pipe.Del(ctx, registryKey(gameType))

			for _, scope := range scopes {
				best := app.ReduceToBest(scores, scope)
				if len(best) == 0 {
					continue
				}
				key := scopeKey(scope)
				members := make([]redis.Z, 0, len(best))
				rows := make(map[string]interface{}, len(best))
				for _, b := range best {
					raw, err := json.Marshal(b)
					if err != nil {
						return err
					}
					members = append(members, redis.Z{Score: float64(b.Score), Member: b.UserID})
					rows[b.UserID] = raw
				}
				pipe.ZAdd(ctx, key, members...)
				pipe.HSet(ctx, bestKey(key), rows)
				pipe.SAdd(ctx, registryKey(gameType), key)
			}
			return nil
		})
		return err
	}, versionKey(gameType))
	if errors.Is(err, app.ErrIndexStale) || errors.Is(err, redis.TxFailedErr) {
		return app.ErrIndexStale
	}
	if err != nil {
		return fmt.Errorf("rebuild %s: %w", gameType, err)
	}
	return nil
}

func (ix *LeaderboardIndex) BestScores(ctx context.Context, scope domain.Scope, limit, offset int) ([]domain.GameScore, error) {
	key := scopeKey(scope)
	stop := int64(-1)
	if limit <= math.MaxInt-offset {
		stop = int64(offset + limit - 1)
	}
	members, err := ix.client.ZRevRange(ctx, key, int64(offset), stop).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []domain.GameScore{}, nil
	}
	raws, err := ix.client.HMGet(ctx, bestKey(key), members...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]domain.GameScore, 0, len(members))
	for i, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("index row missing for user %s", members[i])
		}
		var row domain.GameScore
		if err := json.Unmarshal([]byte(str), &row); err != nil {
			return nil, fmt.Errorf("decode index row: %w", err)
		}
		out = append(out, row)
	}
	return out, nil
}

func (ix *LeaderboardIndex) CountRankedUsers(ctx context.Context, scope domain.Scope) (int, error) {
	n, err := ix.client.ZCard(ctx, scopeKey(scope)).Result()
	return int(n), err
}

func (ix *LeaderboardIndex) CountUsersAbove(ctx context.Context, scope domain.Scope, score int) (int, error) {
	n, err := ix.client.ZCount(ctx, scopeKey(scope), "("+strconv.Itoa(score), "+inf").Result()
	return int(n), err
}

func (ix *LeaderboardIndex) BestScore(ctx context.Context, scope domain.Scope, userID string) (domain.GameScore, bool, error) {
	raw, err := ix.client.HGet(ctx, bestKey(scopeKey(scope)), userID).Result()
	if errors.Is(err, redis.Nil) {
		return domain.GameScore{}, false, nil
	}
	if err != nil {
		return domain.GameScore{}, false, err
	}
	var row domain.GameScore
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return domain.GameScore{}, false, fmt.Errorf("decode index row: %w", err)
	}
	return row, true, nil
}

func scopeKey(scope domain.Scope) string {
	if scope.Level == nil {
		return "leaderboard:" + scope.GameType + ":all"
	}
	return "leaderboard:" + scope.GameType + ":level:" + strconv.Itoa(*scope.Level)
}

func bestKey(scopeKey string) string {
	return scopeKey + ":best"
}

func registryKey(gameType string) string {
	return "leaderboard:" + gameType + ":scopes"
}

func versionKey(gameType string) string {
	return "leaderboard:" + gameType + ":version"
}
