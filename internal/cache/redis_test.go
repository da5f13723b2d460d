// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return mr, &RedisCache{client: client, logger: zerolog.Nop()}
}

func TestRedisCacheSetGet(t *testing.T) {
	_, c := setupMiniRedis(t)
	defer func() { _ = c.Close() }()

	c.Set("voters:301:👍", []string{"u1", "u2"}, 5*time.Minute)

	v, ok := c.Get("voters:301:👍")
	require.True(t, ok)
	// JSON round-trip yields []any.
	assert.Equal(t, []any{"u1", "u2"}, v)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestRedisCacheMiss(t *testing.T) {
	_, c := setupMiniRedis(t)
	defer func() { _ = c.Close() }()

	_, ok := c.Get("absent")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestRedisCacheExpiry(t *testing.T) {
	mr, c := setupMiniRedis(t)
	defer func() { _ = c.Close() }()

	c.Set("k", "v", 50*time.Millisecond)
	mr.FastForward(time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestRedisCacheDeleteAndClear(t *testing.T) {
	_, c := setupMiniRedis(t)
	defer func() { _ = c.Close() }()

	c.Set("a", 1, time.Minute)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("b", 2, time.Minute)
	c.Clear()
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestRedisCacheHealthCheck(t *testing.T) {
	mr, c := setupMiniRedis(t)
	defer func() { _ = c.Close() }()

	assert.NoError(t, c.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, c.HealthCheck(context.Background()))
}
