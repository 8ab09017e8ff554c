package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_CheckLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("cap consumed exactly", func(t *testing.T) {
		limiter := NewMemoryLimiter()

		for i := int64(1); i <= 5; i++ {
			res, err := limiter.CheckLimit(ctx, "user-a", "chat", 5, 1)
			require.NoError(t, err)
			assert.True(t, res.Allowed, "request %d should pass", i)
			assert.Equal(t, i, res.Current)
			assert.Equal(t, 5-i, res.Remaining)
		}

		res, err := limiter.CheckLimit(ctx, "user-a", "chat", 5, 1)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, int64(5), res.Current, "denied call must not increment")
		assert.Equal(t, int64(0), res.Remaining)
	})

	t.Run("denial reports the window reset", func(t *testing.T) {
		limiter := NewMemoryLimiter()
		_, err := limiter.CheckLimit(ctx, "user-b", "chat", 1, 1)
		require.NoError(t, err)

		res, err := limiter.CheckLimit(ctx, "user-b", "chat", 1, 1)
		require.NoError(t, err)
		assert.False(t, res.Allowed)

		nextMidnight := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
		assert.Equal(t, nextMidnight, res.ResetAt)
	})

	t.Run("routes are independent buckets", func(t *testing.T) {
		limiter := NewMemoryLimiter()
		_, err := limiter.CheckLimit(ctx, "user-c", "chat", 1, 1)
		require.NoError(t, err)

		res, err := limiter.CheckLimit(ctx, "user-c", "deck_review", 1, 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("identities are independent buckets", func(t *testing.T) {
		limiter := NewMemoryLimiter()
		_, err := limiter.CheckLimit(ctx, "user-d", "chat", 1, 1)
		require.NoError(t, err)

		res, err := limiter.CheckLimit(ctx, "user-e", "chat", 1, 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("oversized increment denied outright", func(t *testing.T) {
		limiter := NewMemoryLimiter()
		res, err := limiter.CheckLimit(ctx, "user-f", "chat", 3, 5)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, int64(0), res.Current)
	})

	t.Run("window rollover clears buckets", func(t *testing.T) {
		limiter := NewMemoryLimiter()
		_, err := limiter.CheckLimit(ctx, "user-g", "chat", 1, 1)
		require.NoError(t, err)

		// Force a stale window label; the next check starts a fresh day.
		limiter.mu.Lock()
		limiter.window = "1999-12-31"
		limiter.mu.Unlock()

		res, err := limiter.CheckLimit(ctx, "user-g", "chat", 1, 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(1), res.Current)
	})
}

func TestWindowKey(t *testing.T) {
	at := time.Date(2026, 3, 14, 23, 59, 0, 0, time.FixedZone("UTC+5", 5*3600))
	assert.Equal(t, "2026-03-14", windowKey(at), "window is the UTC day")

	reset := windowReset(at)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), reset)
}
