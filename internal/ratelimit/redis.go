package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a WindowStore over Redis, letting multiple instances
// share rate limit state. The window boundary is part of the key so a
// plain INCR suffices; the TTL just garbage-collects old windows.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed window store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr bumps the counter for key in the current fixed window.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	windowID := time.Now().Unix() / int64(window.Seconds())
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, windowID)

	val, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		s.client.Expire(ctx, redisKey, window*2)
	}
	return val, nil
}
