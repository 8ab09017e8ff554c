package guest

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_SessionRoundtrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "deckgate")

	now := time.Now().UTC().Truncate(time.Second)
	session := &Session{
		TokenHash:     "token-hash-1",
		MessageCount:  4,
		IPHash:        "ip-hash",
		UserAgentHash: "ua-hash",
		CreatedAt:     now,
		LastMessageAt: now,
		ExpiresAt:     now.Add(time.Hour),
	}

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, session))

		got, err := store.Get(ctx, "token-hash-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 4, got.MessageCount)
		assert.Equal(t, "ip-hash", got.IPHash)
	})

	t.Run("absent is nil nil", func(t *testing.T) {
		got, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("key expires with the session", func(t *testing.T) {
		mr.FastForward(2 * time.Hour)

		got, err := store.Get(ctx, "token-hash-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete", func(t *testing.T) {
		session.ExpiresAt = time.Now().Add(time.Hour)
		require.NoError(t, store.Put(ctx, session))
		require.NoError(t, store.Delete(ctx, "token-hash-1"))

		got, err := store.Get(ctx, "token-hash-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
