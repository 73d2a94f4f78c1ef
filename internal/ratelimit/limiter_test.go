package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/crawlmeter/crawlmeter/internal/observability"
)

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func TestLimiter_EnforcesLimit(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1000000, 0)
	store.now = func() time.Time { return now }

	l := NewLimiter(store, Config{Limit: 3, Window: time.Minute, Enabled: true},
		observability.NewMockMetricsRegistry(), zaptest.NewLogger(t))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(ctx, "1.2.3.4", "ip"), "request %d should pass", i+1)
	}
	assert.False(t, l.Allow(ctx, "1.2.3.4", "ip"), "request over the limit must be rejected")

	// A different key has its own counter.
	assert.True(t, l.Allow(ctx, "5.6.7.8", "ip"))
}

func TestLimiter_WindowRollover(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1000000, 0)
	store.now = func() time.Time { return now }

	l := NewLimiter(store, Config{Limit: 1, Window: time.Minute, Enabled: true},
		observability.NewMockMetricsRegistry(), zaptest.NewLogger(t))

	ctx := context.Background()
	assert.True(t, l.Allow(ctx, "1.2.3.4", "ip"))
	assert.False(t, l.Allow(ctx, "1.2.3.4", "ip"))

	now = now.Add(time.Minute)
	assert.True(t, l.Allow(ctx, "1.2.3.4", "ip"), "counter resets in the next window")
}

func TestLimiter_FailsOpen(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()
	l := NewLimiter(failingStore{}, Config{Limit: 1, Window: time.Minute, Enabled: true},
		metrics, zaptest.NewLogger(t))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(ctx, "1.2.3.4", "ip"), "store errors must never reject traffic")
	}
	assert.Equal(t, 5, metrics.StoreErrs["ratelimit"])
}

func TestLimiter_DisabledAndDegenerate(t *testing.T) {
	metrics := observability.NewMockMetricsRegistry()

	disabled := NewLimiter(NewMemoryStore(), Config{Limit: 0, Window: time.Minute, Enabled: false}, metrics, zaptest.NewLogger(t))
	assert.True(t, disabled.Allow(context.Background(), "1.2.3.4", "ip"))

	nilStore := NewLimiter(nil, Config{Limit: 1, Window: time.Minute, Enabled: true}, metrics, zaptest.NewLogger(t))
	assert.True(t, nilStore.Allow(context.Background(), "1.2.3.4", "ip"))

	enabled := NewLimiter(NewMemoryStore(), Config{Limit: 1, Window: time.Minute, Enabled: true}, metrics, zaptest.NewLogger(t))
	assert.True(t, enabled.Allow(context.Background(), "", "ip"), "empty key cannot be limited")
}

func TestLimiter_Stats(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1000000, 0)
	store.now = func() time.Time { return now }

	l := NewLimiter(store, Config{Limit: 2, Window: time.Minute, Enabled: true},
		observability.NewMockMetricsRegistry(), zaptest.NewLogger(t))

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		l.Allow(ctx, "1.2.3.4", "ip")
	}

	stats := l.GetStats()
	require.Contains(t, stats, "1.2.3.4")
	s := stats["1.2.3.4"]
	assert.Equal(t, int64(4), s.Total)
	assert.Equal(t, int64(2), s.Hits)
	assert.InDelta(t, 0.5, s.HitRate, 1e-9)
	assert.Contains(t, s.String(), "1.2.3.4")
}

func TestMemoryStore_Prune(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1000000, 0)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := store.Incr(ctx, "old", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Incr(ctx, "fresh", time.Minute)
	require.NoError(t, err)

	store.Prune(time.Minute)

	store.mu.RLock()
	defer store.mu.RUnlock()
	assert.NotContains(t, store.counters, "old")
	assert.Contains(t, store.counters, "fresh")
}
