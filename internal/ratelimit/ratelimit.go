// Package ratelimit throttles public endpoints with fixed-window counters kept
// in a swappable store.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// CounterStore counts hits per key within fixed windows. The in-memory store
// suits a single instance; multi-instance deployments use a shared store.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int, error)
}

type Limiter struct {
	store  CounterStore
	window time.Duration
	max    int
}

func NewLimiter(store CounterStore, window time.Duration, max int) *Limiter {
	return &Limiter{store: store, window: window, max: max}
}

// Allow records a hit for key. Store failures allow the request.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l.max <= 0 {
		return true
	}
	n, err := l.store.Increment(ctx, key, l.window)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Rate limit store unavailable, allowing request")
		return true
	}
	return n <= l.max
}

// MemoryStore is a process-local CounterStore. Expired windows are swept at
// most once per window length, not on every hit.
type MemoryStore struct {
	mu        sync.Mutex
	counters  map[string]*window
	nextSweep time.Time
	now       func() time.Time
}

type window struct {
	start time.Time
	end   time.Time
	count int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*window),
		now:      time.Now,
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, size time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	start := now.Truncate(size)
	if !now.Before(s.nextSweep) {
		s.sweep(now)
		s.nextSweep = start.Add(size)
	}

	w, ok := s.counters[key]
	if !ok || !w.start.Equal(start) {
		w = &window{start: start, end: start.Add(size)}
		s.counters[key] = w
	}
	w.count++
	return w.count, nil
}

// sweep drops windows that ended at or before now.
func (s *MemoryStore) sweep(now time.Time) {
	for k, w := range s.counters {
		if !w.end.After(now) {
			delete(s.counters, k)
		}
	}
}
