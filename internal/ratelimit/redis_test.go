package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, "deckgate"), mr
}

func TestRedisLimiter_CheckLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the cap", func(t *testing.T) {
		limiter, _ := newTestRedisLimiter(t)

		for i := int64(1); i <= 3; i++ {
			res, err := limiter.CheckLimit(ctx, "user-a", "chat", 3, 1)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, i, res.Current)
		}
	})

	t.Run("denied call never increments", func(t *testing.T) {
		limiter, _ := newTestRedisLimiter(t)

		for i := 0; i < 2; i++ {
			_, err := limiter.CheckLimit(ctx, "user-b", "chat", 2, 1)
			require.NoError(t, err)
		}

		for i := 0; i < 4; i++ {
			res, err := limiter.CheckLimit(ctx, "user-b", "chat", 2, 1)
			require.NoError(t, err)
			assert.False(t, res.Allowed)
			assert.Equal(t, int64(2), res.Current)
			assert.Equal(t, int64(0), res.Remaining)
		}
	})

	t.Run("buckets keyed by identity and route", func(t *testing.T) {
		limiter, _ := newTestRedisLimiter(t)

		_, err := limiter.CheckLimit(ctx, "user-c", "chat", 1, 1)
		require.NoError(t, err)

		res, err := limiter.CheckLimit(ctx, "user-c", "deck_review", 1, 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed)

		res, err = limiter.CheckLimit(ctx, "user-d", "chat", 1, 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("bucket key carries a TTL", func(t *testing.T) {
		limiter, mr := newTestRedisLimiter(t)

		_, err := limiter.CheckLimit(ctx, "user-e", "chat", 5, 1)
		require.NoError(t, err)

		keys := mr.Keys()
		require.Len(t, keys, 1)
		assert.Greater(t, mr.TTL(keys[0]).Seconds(), 0.0)
	})

	t.Run("larger increments consume proportionally", func(t *testing.T) {
		limiter, _ := newTestRedisLimiter(t)

		res, err := limiter.CheckLimit(ctx, "user-f", "chat", 10, 4)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(4), res.Current)
		assert.Equal(t, int64(6), res.Remaining)

		res, err = limiter.CheckLimit(ctx, "user-f", "chat", 10, 7)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, int64(4), res.Current)
	})
}
