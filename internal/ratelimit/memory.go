package ratelimit

import (
	"context"
	"sync"
	"time"
)

// counter is one key's state for the current window.
type counter struct {
	mu       sync.Mutex
	windowID int64
	count    int64
}

// MemoryStore is an in-process WindowStore. Counters are created lazily
// per key and reset when the window rolls over; no cross-key locking.
type MemoryStore struct {
	mu       sync.RWMutex
	counters map[string]*counter

	// now is swappable in tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory window store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// Incr bumps the counter for key in the current window and returns the
// new count. The first request of a new window resets the count.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.RLock()
	c, exists := s.counters[key]
	s.mu.RUnlock()

	if !exists {
		// Double-checked locking pattern to avoid race conditions
		s.mu.Lock()
		c, exists = s.counters[key]
		if !exists {
			c = &counter{}
			s.counters[key] = c
		}
		s.mu.Unlock()
	}

	windowID := s.now().Unix() / int64(window.Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.windowID != windowID {
		c.windowID = windowID
		c.count = 0
	}
	c.count++
	return c.count, nil
}

// Prune drops counters whose window is older than the current one.
// Call periodically to bound memory on long-running processes.
func (s *MemoryStore) Prune(window time.Duration) {
	current := s.now().Unix() / int64(window.Seconds())
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, c := range s.counters {
		c.mu.Lock()
		stale := c.windowID < current
		c.mu.Unlock()
		if stale {
			delete(s.counters, key)
		}
	}
}
