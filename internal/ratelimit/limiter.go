// Package ratelimit implements fixed-window rate limiting for the
// detection pipeline's front gate.
//
// Windows align to floor(now/window) so every request in the same
// window shares one counter. This deliberately trades the burst
// smoothing of a token bucket for a counter that can live in Redis with
// a single INCR, matching how the per-IP gate is expected to scale out.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crawlmeter/crawlmeter/internal/observability"
)

// WindowStore increments and returns the counter for key in the current
// fixed window. Implementations must be safe for concurrent use.
type WindowStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Config holds the configuration for rate limiting.
type Config struct {
	Limit   int           // Requests allowed per window per key
	Window  time.Duration // Window length, default one minute
	Enabled bool          // Whether rate limiting is active
}

// Limiter gates requests per key (client IP or license key). A failing
// store never rejects traffic: the limiter fails open and counts the
// error instead.
type Limiter struct {
	store   WindowStore
	config  Config
	metrics observability.MetricsRegistry
	logger  *zap.Logger

	mu    sync.RWMutex
	stats map[string]*keyStats
}

type keyStats struct {
	hits  int64
	total int64
}

// NewLimiter creates a rate limiter over the given window store.
func NewLimiter(store WindowStore, config Config, metrics observability.MetricsRegistry, logger *zap.Logger) *Limiter {
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		store:   store,
		config:  config,
		metrics: metrics,
		logger:  logger,
		stats:   make(map[string]*keyStats),
	}
}

// Allow increments the counter for key and reports whether the request
// is still under the limit. keyClass labels metrics ("ip" or "license").
//
// Disabled limiting, a nil store, or a store error all return true.
func (l *Limiter) Allow(ctx context.Context, key, keyClass string) bool {
	if !l.config.Enabled || l.store == nil || key == "" {
		return true
	}

	l.metrics.IncrementRateLimitRequests(keyClass)

	count, err := l.store.Incr(ctx, key, l.config.Window)
	if err != nil {
		l.metrics.IncrementStoreErrors("ratelimit")
		l.logger.Warn("rate limit store error", zap.String("key", key), zap.Error(err))
		return true
	}

	allowed := count <= int64(l.config.Limit)
	l.recordStat(key, allowed)
	if !allowed {
		l.metrics.IncrementRateLimitHits(keyClass)
	}
	return allowed
}

func (l *Limiter) recordStat(key string, allowed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stats[key]
	if !ok {
		s = &keyStats{}
		l.stats[key] = s
	}
	s.total++
	if !allowed {
		s.hits++
	}
}

// Stats contains rate limiting counters for a single key.
type Stats struct {
	Key     string  `json:"key"`
	Hits    int64   `json:"hits"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"`
}

// String returns a human-readable representation of the statistics.
func (s Stats) String() string {
	return fmt.Sprintf("%s: %d/%d hits (%.2f%%)", s.Key, s.Hits, s.Total, s.HitRate*100)
}

// GetStats returns a snapshot of per-key rate limiting statistics.
func (l *Limiter) GetStats() map[string]Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]Stats, len(l.stats))
	for key, s := range l.stats {
		rate := 0.0
		if s.total > 0 {
			rate = float64(s.hits) / float64(s.total)
		}
		out[key] = Stats{Key: key, Hits: s.hits, Total: s.total, HitRate: rate}
	}
	return out
}
