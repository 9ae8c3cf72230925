package app

import (
	"sync"

	"learnplay-engine/internal/domain"
)

// Feed fans out live leaderboard pages per game type.
type Feed struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.LeaderboardPage]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[string]map[chan domain.LeaderboardPage]struct{})}
}

// Subscribe registers a channel for gameType, primed with initial.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *Feed) Subscribe(gameType string, initial domain.LeaderboardPage) (<-chan domain.LeaderboardPage, func()) {
	ch := make(chan domain.LeaderboardPage, 8)
	ch <- initial

	f.mu.Lock()
	subs, ok := f.subscribers[gameType]
	if !ok {
		subs = make(map[chan domain.LeaderboardPage]struct{})
		f.subscribers[gameType] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subscribers[gameType]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(f.subscribers, gameType)
		}
	}
	return ch, cancel
}

// HasSubscribers reports whether anyone listens to gameType.
func (f *Feed) HasSubscribers(gameType string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[gameType]) > 0
}

// Publish delivers page to every subscriber of gameType without blocking.
func (f *Feed) Publish(gameType string, page domain.LeaderboardPage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[gameType] {
		select {
		case ch <- page:
		default:
			// Slow subscriber: replace the oldest queued page with the newest.
			select {
			case <-ch:
			default:
			}
			ch <- page
		}
	}
}
