// Package limiter throttles login and registration attempts per client.
package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "login:"

// Limiter decides whether another attempt for key is allowed in the current window
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// RedisLimiter counts attempts in Redis so the limit holds across instances
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisLimiter connects to redisURL and returns a fixed-window limiter
func NewRedisLimiter(redisURL string, limit int, window time.Duration) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisLimiterWithClient(client, limit, window), nil
}

// NewRedisLimiterWithClient wraps an existing client
func NewRedisLimiterWithClient(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, limit: limit, window: window}
}

// Allow increments the attempt counter. INCR and EXPIRE NX run in one
// transaction, so a counter without a TTL gets one on the next attempt.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := keyPrefix + key

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", k, err)
	}
	return incr.Val() <= int64(l.limit), nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

type rateBucket struct {
	windowStart time.Time
	count       int
	lastSeen    time.Time
}

// MemoryLimiter is an in-process fixed-window limiter
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*rateBucket
	now     func() time.Time
}

// NewMemoryLimiter creates an in-process limiter
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*rateBucket),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok {
		l.entries[key] = &rateBucket{windowStart: now, count: 1, lastSeen: now}
		l.cleanupLocked(now)
		return true, nil
	}

	if now.Sub(entry.windowStart) >= l.window {
		entry.windowStart = now
		entry.count = 0
	}
	entry.lastSeen = now

	if entry.count >= l.limit {
		l.cleanupLocked(now)
		return false, nil
	}

	entry.count++
	l.cleanupLocked(now)
	return true, nil
}

func (l *MemoryLimiter) cleanupLocked(now time.Time) {
	if len(l.entries) <= 128 {
		return
	}
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > l.window*3 {
			delete(l.entries, key)
		}
	}
}

func (l *MemoryLimiter) Close() error {
	return nil
}
