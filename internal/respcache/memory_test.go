package respcache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Roundtrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	entry := &Entry{
		Text:  "You can only play one land per turn.",
		Usage: Usage{PromptTokens: 40, CompletionTokens: 12, TotalTokens: 52},
		Model: "gpt-5",
	}

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, TablePublic, "k1", entry, time.Hour))

		got, err := store.Get(ctx, TablePublic, "k1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, entry.Text, got.Text)
		assert.Equal(t, 52, got.Usage.TotalTokens)
	})

	t.Run("tables are separate", func(t *testing.T) {
		got, err := store.Get(ctx, TablePrivate, "k1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("absent key is a plain miss", func(t *testing.T) {
		got, err := store.Get(ctx, TablePublic, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("overwrite wins", func(t *testing.T) {
		updated := &Entry{Text: "updated"}
		require.NoError(t, store.Set(ctx, TablePublic, "k1", updated, time.Hour))

		got, err := store.Get(ctx, TablePublic, "k1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "updated", got.Text)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, TablePublic, "k1"))
		got, err := store.Get(ctx, TablePublic, "k1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	require.NoError(t, store.Set(ctx, TablePublic, "old", &Entry{Text: "stale"}, time.Hour))

	// Backdate the row past its expiry.
	store.mu.Lock()
	row := store.tables[TablePublic]["old"]
	row.expiresAt = time.Now().Add(-time.Minute)
	store.tables[TablePublic]["old"] = row
	store.mu.Unlock()

	got, err := store.Get(ctx, TablePublic, "old")
	require.NoError(t, err)
	assert.Nil(t, got, "expired row must read as a miss")
}

func TestMemoryStore_BoundedCleanup(t *testing.T) {
	ctx := context.Background()

	seedExpired := func(store *MemoryStore, n int) {
		store.mu.Lock()
		for i := 0; i < n; i++ {
			store.tables[TablePublic][fmt.Sprintf("expired-%d", i)] = memoryRow{
				entry:     Entry{Text: "stale"},
				expiresAt: time.Now().Add(-time.Duration(i+1) * time.Minute),
			}
		}
		store.mu.Unlock()
	}

	t.Run("one write removes at most the batch", func(t *testing.T) {
		store := NewMemoryStore(100)
		seedExpired(store, 150)

		require.NoError(t, store.Set(ctx, TablePublic, "fresh", &Entry{Text: "new"}, time.Hour))

		// 150 expired - 100 cleaned + 1 fresh
		assert.Equal(t, 51, store.Len(TablePublic))
	})

	t.Run("fewer expired than batch all removed", func(t *testing.T) {
		store := NewMemoryStore(100)
		seedExpired(store, 7)

		require.NoError(t, store.Set(ctx, TablePublic, "fresh", &Entry{Text: "new"}, time.Hour))

		assert.Equal(t, 1, store.Len(TablePublic))
	})

	t.Run("live rows untouched", func(t *testing.T) {
		store := NewMemoryStore(100)
		require.NoError(t, store.Set(ctx, TablePublic, "live", &Entry{Text: "keep"}, time.Hour))
		seedExpired(store, 3)

		require.NoError(t, store.Set(ctx, TablePublic, "fresh", &Entry{Text: "new"}, time.Hour))

		got, err := store.Get(ctx, TablePublic, "live")
		require.NoError(t, err)
		assert.NotNil(t, got)
	})
}
