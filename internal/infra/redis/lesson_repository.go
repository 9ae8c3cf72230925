package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"learnplay-engine/internal/domain"
)

// LessonLoader fetches lesson content from a backing store.
type LessonLoader interface {
	LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
}

// LessonRepository caches lessons in Redis and falls back to a loader on cache miss.
// Lessons are stored as JSON: SET lesson:{lessonID} {json} EX ttl
type LessonRepository struct {
	client *redis.Client
	loader LessonLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLessonRepository(client *redis.Client, loader LessonLoader, ttl time.Duration) *LessonRepository {
	return &LessonRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *LessonRepository) GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	if lesson, ok := r.cached(ctx, lessonID); ok {
		return lesson, nil
	}

	result, err, _ := r.sf.Do(lessonID, func() (interface{}, error) {
		// Re-check cache in case another instance filled it.
		if lesson, ok := r.cached(ctx, lessonID); ok {
			return lesson, nil
		}

		lesson, err := r.loader.LoadLesson(ctx, lessonID)
		if err != nil {
			return domain.Lesson{}, err
		}
		if raw, err := json.Marshal(lesson); err == nil {
			_ = r.client.Set(ctx, lessonKey(lessonID), raw, r.ttlWithJitter()).Err()
		}
		return lesson, nil
	})
	if err != nil {
		return domain.Lesson{}, err
	}
	return result.(domain.Lesson), nil
}

// Invalidate drops a cached lesson so the next read reloads it.
func (r *LessonRepository) Invalidate(ctx context.Context, lessonID string) error {
	return r.client.Del(ctx, lessonKey(lessonID)).Err()
}

func (r *LessonRepository) cached(ctx context.Context, lessonID string) (domain.Lesson, bool) {
	raw, err := r.client.Get(ctx, lessonKey(lessonID)).Bytes()
	if err != nil {
		return domain.Lesson{}, false
	}
	var lesson domain.Lesson
	if err := json.Unmarshal(raw, &lesson); err != nil {
		return domain.Lesson{}, false
	}
	return lesson, true
}

func lessonKey(lessonID string) string {
	return "lesson:" + lessonID
}

func (r *LessonRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(int64(r.ttl)/10+1))
}

