package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chattyhq/export-service/internal/ports"
)

// RedisThrottleStore implements OTP resend throttling in Redis.
type RedisThrottleStore struct {
	client *redis.Client
}

// NewRedisThrottleStore creates a throttle store backed by Redis hashes.
func NewRedisThrottleStore(client *redis.Client) *RedisThrottleStore {
	return &RedisThrottleStore{client: client}
}

func (s *RedisThrottleStore) Get(ctx context.Context, key string) (ports.ThrottleState, error) {
	data, err := s.client.HGetAll(ctx, "export:throttle:"+key).Result()
	if err != nil {
		return ports.ThrottleState{}, err
	}
	if len(data) == 0 {
		return ports.ThrottleState{}, nil
	}

	state := ports.ThrottleState{}
	if raw, ok := data["attempt_count"]; ok {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			state.AttemptCount = n
		}
	}
	if raw, ok := data["blocked_until"]; ok && raw != "" {
		if unix, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil && unix > 0 {
			t := time.Unix(unix, 0).UTC()
			state.BlockedUntil = &t
		}
	}
	return state, nil
}

func (s *RedisThrottleStore) RecordAttempt(ctx context.Context, key string, now time.Time, threshold int, window time.Duration) (ports.ThrottleState, error) {
	redisKey := "export:throttle:" + key

	count, err := s.client.HIncrBy(ctx, redisKey, "attempt_count", 1).Result()
	if err != nil {
		return ports.ThrottleState{}, err
	}

	state := ports.ThrottleState{AttemptCount: int(count)}
	if int(count) >= threshold {
		blockedUntil := now.Add(window).UTC()
		_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, redisKey, "blocked_until", blockedUntil.Unix())
			p.Expire(ctx, redisKey, window+30*time.Minute)
			return nil
		})
		if err != nil {
			return ports.ThrottleState{}, err
		}
		state.BlockedUntil = &blockedUntil
		return state, nil
	}

	_ = s.client.Expire(ctx, redisKey, window).Err()
	return state, nil
}

func (s *RedisThrottleStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, "export:throttle:"+key).Err()
}
