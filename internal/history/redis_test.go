package history

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crawlmeter/crawlmeter/internal/models"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, time.Minute), mr
}

func TestRedisStore_RecordAndRecent(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, ua := range []string{"agent-a", "agent-b", "agent-c"} {
		err := store.Record(ctx, models.HistoryEntry{IP: "1.2.3.4", UserAgent: ua, Timestamp: now})
		require.NoError(t, err)
	}

	entries, err := store.Recent(ctx, "1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	agents := make(map[string]bool)
	for _, e := range entries {
		assert.Equal(t, "1.2.3.4", e.IP)
		agents[e.UserAgent] = true
	}
	assert.Len(t, agents, 3)
}

func TestRedisStore_DuplicateAgentsKept(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	// Identical user agents at identical timestamps are distinct
	// requests and must all count toward the frequency heuristic.
	for i := 0; i < 5; i++ {
		err := store.Record(ctx, models.HistoryEntry{IP: "1.2.3.4", UserAgent: "curl/8.0", Timestamp: now})
		require.NoError(t, err)
	}

	entries, err := store.Recent(ctx, "1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestRedisStore_WindowPrunes(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Record(ctx, models.HistoryEntry{IP: "1.2.3.4", UserAgent: "old", Timestamp: now.Add(-2 * time.Minute)}))
	require.NoError(t, store.Record(ctx, models.HistoryEntry{IP: "1.2.3.4", UserAgent: "new", Timestamp: now}))

	entries, err := store.Recent(ctx, "1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].UserAgent)
}

func TestRedisStore_SetsExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)

	err := store.Record(context.Background(), models.HistoryEntry{IP: "1.2.3.4", UserAgent: "a", Timestamp: time.Now()})
	require.NoError(t, err)

	assert.Greater(t, mr.TTL("history:1.2.3.4"), time.Duration(0))
}

func TestRedisStore_EmptyHistory(t *testing.T) {
	store, _ := newTestRedisStore(t)

	entries, err := store.Recent(context.Background(), "9.9.9.9", time.Minute)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
