package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStrategy struct {
	key    string
	limit  int
	window time.Duration
	allow  bool
}

func (s *recordingStrategy) Allow(ctx context.Context, rdb redis.Scripter, key string, limit int, window time.Duration) (bool, error) {
	s.key, s.limit, s.window = key, limit, window
	return s.allow, nil
}

func TestManagerNamespacesKeys(t *testing.T) {
	strategy := &recordingStrategy{allow: true}
	m := NewManager(nil, strategy, "ratelimit:chat")

	ok, err := m.Allow(context.Background(), "visitor-1", 5, time.Minute)
	require.NoError(t, err)

	assert.True(t, ok)
	assert.Equal(t, "ratelimit:chat:visitor-1", strategy.key)
	assert.Equal(t, 5, strategy.limit)
	assert.Equal(t, time.Minute, strategy.window)
}

func TestFixedWindowZeroLimitDisables(t *testing.T) {
	ok, err := FixedWindowStrategy{}.Allow(context.Background(), nil, "k", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.ErrorContains(t, err, "parse redis url")
}
