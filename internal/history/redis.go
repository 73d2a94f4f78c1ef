package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/crawlmeter/crawlmeter/internal/models"
)

// RedisStore keeps per-IP history in a Redis sorted set scored by
// timestamp, so pruning is one ZREMRANGEBYSCORE. Members carry a uuid
// prefix to keep identical user agents from collapsing into one entry.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore creates a Redis-backed history store.
func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = time.Minute
	}
	return &RedisStore{client: client, retention: retention}
}

func historyKey(ip string) string {
	return fmt.Sprintf("history:%s", ip)
}

// Record appends one entry and refreshes the key TTL.
func (s *RedisStore) Record(ctx context.Context, entry models.HistoryEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	member := uuid.NewString() + "|" + entry.UserAgent
	key := historyKey(entry.IP)

	if err := s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(ts.UnixMilli()),
		Member: member,
	}).Err(); err != nil {
		return err
	}
	s.client.Expire(ctx, key, s.retention*2)
	return nil
}

// Recent returns entries for ip within the window, pruning older
// members as a side effect.
func (s *RedisStore) Recent(ctx context.Context, ip string, window time.Duration) ([]models.HistoryEntry, error) {
	key := historyKey(ip)
	cutoff := time.Now().Add(-window).UnixMilli()

	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return nil, err
	}

	members, err := s.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.HistoryEntry, 0, len(members))
	for _, m := range members {
		raw, ok := m.Member.(string)
		if !ok {
			continue
		}
		_, ua, found := strings.Cut(raw, "|")
		if !found {
			continue
		}
		entries = append(entries, models.HistoryEntry{
			IP:        ip,
			UserAgent: ua,
			Timestamp: time.UnixMilli(int64(m.Score)),
		})
	}
	return entries, nil
}
