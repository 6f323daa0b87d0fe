// Package limiter rate limits visitor traffic with counters kept in Redis.
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Strategy a rate limiting algorithm
type Strategy interface {
	// Allow reports whether one more hit on key fits in limit per window
	Allow(ctx context.Context, rdb redis.Scripter, key string, limit int, window time.Duration) (bool, error)
}

// Manager applies a strategy against one Redis client
type Manager struct {
	rdb      redis.Scripter
	strategy Strategy
	prefix   string
}

// NewManager creates a manager, keys are namespaced with prefix
func NewManager(rdb redis.Scripter, strategy Strategy, prefix string) *Manager {
	return &Manager{
		rdb:      rdb,
		strategy: strategy,
		prefix:   prefix,
	}
}

// Allow checks the limit for key
func (m *Manager) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return m.strategy.Allow(ctx, m.rdb, m.Key(key), limit, window)
}

// Key full Redis key for a caller key
func (m *Manager) Key(key string) string {
	return fmt.Sprintf("%s:%s", m.prefix, key)
}

// fixedWindowScript increments the counter and starts the window on the
// first hit, atomically
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
	return 0
end
return 1
`)

// FixedWindowStrategy counter per window
type FixedWindowStrategy struct{}

func (FixedWindowStrategy) Allow(ctx context.Context, rdb redis.Scripter, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	result, err := fixedWindowScript.Run(ctx, rdb, []string{key}, limit, window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// NewRedisClient parses a redis:// URL and connects
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
