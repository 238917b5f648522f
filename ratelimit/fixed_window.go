package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether another attempt for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
	Window() time.Duration
}

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisFixedWindowLimiter limits attempts per key across every process sharing
// one Redis.
type RedisFixedWindowLimiter struct {
	limit  int
	window time.Duration

	redisClient *redis.Client
	redisPrefix string
	now         func() time.Time
}

// validate rejects windows under a millisecond; slots and PEXPIRE are counted in milliseconds.
func validate(limit int, window time.Duration) error {
	if limit <= 0 {
		return errors.New("rate limiter requires a positive limit")
	}
	if window < time.Millisecond {
		return fmt.Errorf("rate limiter window must be at least 1ms, got %s", window)
	}
	return nil
}

// NewRedisFixedWindowLimiter creates a Redis-backed distributed limiter.
func NewRedisFixedWindowLimiter(addr, password, prefix string, limit int, window time.Duration) (*RedisFixedWindowLimiter, error) {
	if err := validate(limit, window); err != nil {
		return nil, err
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "agency:ratelimit"
	}
	return &RedisFixedWindowLimiter{
		limit:  limit,
		window: window,
		redisClient: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		redisPrefix: prefix,
		now:         time.Now,
	}, nil
}

func (l *RedisFixedWindowLimiter) Window() time.Duration {
	return l.window
}

// Allow returns true when the key is within quota.
// On Redis failures, it fails closed and returns false.
func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil {
		return false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	windowMs := l.window.Milliseconds()
	if windowMs <= 0 {
		return true
	}
	windowSlot := l.now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.redisPrefix, key, windowSlot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	res, err := fixedWindowScript.Run(ctx, l.redisClient, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false
	}
	return res <= int64(l.limit)
}

// Ping checks that Redis is reachable.
func (l *RedisFixedWindowLimiter) Ping(ctx context.Context) error {
	return l.redisClient.Ping(ctx).Err()
}

func (l *RedisFixedWindowLimiter) Close() error {
	return l.redisClient.Close()
}

type memoryWindow struct {
	slot  int64
	count int
}

// MemoryFixedWindowLimiter is the single-process fallback when no Redis is configured.
type MemoryFixedWindowLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]memoryWindow
	now     func() time.Time
}

func NewMemoryFixedWindowLimiter(limit int, window time.Duration) (*MemoryFixedWindowLimiter, error) {
	if err := validate(limit, window); err != nil {
		return nil, err
	}
	return &MemoryFixedWindowLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]memoryWindow),
		now:     time.Now,
	}, nil
}

func (l *MemoryFixedWindowLimiter) Window() time.Duration {
	return l.window
}

func (l *MemoryFixedWindowLimiter) Allow(_ context.Context, key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	slot := l.now().UTC().UnixMilli() / l.window.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w.slot != slot {
		w = memoryWindow{slot: slot}
		if len(l.windows) > 10000 {
			l.evict(slot)
		}
	}
	w.count++
	l.windows[key] = w
	return w.count <= l.limit
}

// evict drops windows from earlier slots. Caller holds mu.
func (l *MemoryFixedWindowLimiter) evict(current int64) {
	for k, w := range l.windows {
		if w.slot != current {
			delete(l.windows, k)
		}
	}
}
