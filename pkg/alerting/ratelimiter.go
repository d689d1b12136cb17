package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter bounds how many alerts may be admitted for a given key within
// a sliding time window. Two implementations exist: InMemoryRateLimiter for
// single-instance deployments and RedisRateLimiter for deployments sharing
// one window across instances.
type RateLimiter interface {
	// Allow reports whether an alert for key should be admitted, pruning
	// expired entries and recording this admission as a side effect.
	Allow(ctx context.Context, key string) (bool, error)
	// Reset clears the window for key.
	Reset(ctx context.Context, key string) error
}

// InMemoryRateLimiter is a slice-backed sliding window limiter, grounded
// directly in the original implementation's AlertRateLimiter: prune entries
// older than the window, admit iff under the max, then record.
type InMemoryRateLimiter struct {
	mu         sync.Mutex
	window     time.Duration
	maxAlerts  int
	timestamps map[string][]time.Time
	now        func() time.Time
}

// NewInMemoryRateLimiter creates a limiter admitting at most maxAlerts
// events per key within windowSeconds.
func NewInMemoryRateLimiter(windowSeconds int64, maxAlerts int) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		window:     time.Duration(windowSeconds) * time.Second,
		maxAlerts:  maxAlerts,
		timestamps: map[string][]time.Time{},
		now:        time.Now,
	}
}

func (l *InMemoryRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	entries := l.timestamps[key]
	kept := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.maxAlerts {
		l.timestamps[key] = kept
		return false, nil
	}

	l.timestamps[key] = append(kept, now)
	return true, nil
}

func (l *InMemoryRateLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.timestamps, key)
	return nil
}

// RedisRateLimiter implements the same sliding-window admission policy
// using a Redis sorted set per key, so multiple process instances share one
// window. Scores are Unix nanosecond timestamps.
type RedisRateLimiter struct {
	client    *redis.Client
	window    time.Duration
	maxAlerts int
	keyPrefix string
	now       func() time.Time
}

// NewRedisRateLimiter creates a Redis-backed limiter.
func NewRedisRateLimiter(client *redis.Client, windowSeconds int64, maxAlerts int) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:    client,
		window:    time.Duration(windowSeconds) * time.Second,
		maxAlerts: maxAlerts,
		keyPrefix: "alerting:ratelimit:",
		now:       time.Now,
	}
}

func (l *RedisRateLimiter) redisKey(key string) string {
	return l.keyPrefix + key
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.redisKey(key)
	now := l.now()
	cutoff := now.Add(-l.window)

	if err := l.client.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", cutoff.UnixNano())).Err(); err != nil {
		return false, fmt.Errorf("rate limiter prune: %w", err)
	}

	count, err := l.client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limiter count: %w", err)
	}
	if int(count) >= l.maxAlerts {
		return false, nil
	}

	member := fmt.Sprintf("%d-%d", now.UnixNano(), now.Nanosecond())
	score := float64(now.UnixNano())
	if err := l.client.ZAdd(ctx, redisKey, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return false, fmt.Errorf("rate limiter record: %w", err)
	}
	if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
		return false, fmt.Errorf("rate limiter expire: %w", err)
	}

	return true, nil
}

func (l *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.redisKey(key)).Err()
}
