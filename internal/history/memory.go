// Package history stores the recent-request log the behavioral analyzer
// reads. Entries only matter inside the analysis window, so both
// implementations prune lazily on access rather than running a sweeper.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/crawlmeter/crawlmeter/internal/models"
)

// MemoryStore keeps per-IP request history in process. Each IP gets its
// own slice and lock; there is no global lock across IPs beyond the map
// itself, so concurrent traffic for different IPs never contends.
type MemoryStore struct {
	mu        sync.RWMutex
	byIP      map[string]*ipLog
	retention time.Duration

	now func() time.Time
}

type ipLog struct {
	mu      sync.Mutex
	entries []models.HistoryEntry
}

// NewMemoryStore creates a store retaining entries for the given
// duration. Non-positive retention defaults to one minute.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = time.Minute
	}
	return &MemoryStore{
		byIP:      make(map[string]*ipLog),
		retention: retention,
		now:       time.Now,
	}
}

// Record appends one entry, pruning anything that has aged out of the
// retention window while it holds the per-IP lock anyway.
func (s *MemoryStore) Record(_ context.Context, entry models.HistoryEntry) error {
	s.mu.RLock()
	log, exists := s.byIP[entry.IP]
	s.mu.RUnlock()

	if !exists {
		s.mu.Lock()
		log, exists = s.byIP[entry.IP]
		if !exists {
			log = &ipLog{}
			s.byIP[entry.IP] = log
		}
		s.mu.Unlock()
	}

	cutoff := s.now().Add(-s.retention)

	log.mu.Lock()
	defer log.mu.Unlock()
	kept := log.entries[:0]
	for _, e := range log.entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	log.entries = append(kept, entry)
	return nil
}

// Recent returns entries for ip newer than the window, oldest first.
func (s *MemoryStore) Recent(_ context.Context, ip string, window time.Duration) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	log, exists := s.byIP[ip]
	s.mu.RUnlock()
	if !exists {
		return nil, nil
	}

	cutoff := s.now().Add(-window)

	log.mu.Lock()
	defer log.mu.Unlock()
	var out []models.HistoryEntry
	for _, e := range log.entries {
		if e.Timestamp.After(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}
