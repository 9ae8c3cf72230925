package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"learnplay-engine/internal/domain"
)

// LessonLoader fetches lesson content from a backing store.
type LessonLoader interface {
	LoadLesson(ctx context.Context, lessonID string) (domain.Lesson, error)
}

// LessonRepository caches lessons with a jittered TTL; concurrent misses share one load.
type LessonRepository struct {
	loader LessonLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedLesson
}

type cachedLesson struct {
	lesson    domain.Lesson
	expiresAt time.Time
}

func NewLessonRepository(loader LessonLoader, ttl time.Duration) *LessonRepository {
	return &LessonRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedLesson),
	}
}

func (r *LessonRepository) GetLesson(ctx context.Context, lessonID string) (domain.Lesson, error) {
	if lesson, ok := r.cached(lessonID); ok {
		return lesson, nil
	}

	result, err, _ := r.sf.Do(lessonID, func() (interface{}, error) {
		if lesson, ok := r.cached(lessonID); ok {
			return lesson, nil
		}
		lesson, err := r.loader.LoadLesson(ctx, lessonID)
		if err != nil {
			return domain.Lesson{}, err
		}

		r.mu.Lock()
		r.cache[lessonID] = cachedLesson{
			lesson:    lesson,
			expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
		return lesson, nil
	})
	if err != nil {
		return domain.Lesson{}, err
	}
	return result.(domain.Lesson), nil
}

func (r *LessonRepository) cached(lessonID string) (domain.Lesson, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[lessonID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Lesson{}, false
	}
	return entry.lesson, true
}

// ttlWithJitterLocked adds up to 10% so entries loaded together expire apart.
func (r *LessonRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	return r.ttl + time.Duration(r.rnd.Int63n(int64(r.ttl)/10+1))
}

// StaticLessonLoader serves lessons from a map (tests, demos, no database configured).
type StaticLessonLoader struct {
	lessons map[string]domain.Lesson
}

func NewStaticLessonLoader(lessons map[string]domain.Lesson) *StaticLessonLoader {
	return &StaticLessonLoader{lessons: lessons}
}

func (l *StaticLessonLoader) LoadLesson(_ context.Context, lessonID string) (domain.Lesson, error) {
	if lesson, ok := l.lessons[lessonID]; ok {
		return lesson, nil
	}
	return domain.Lesson{}, domain.ErrLessonNotFound
}
