package respcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manawise/deckgate/internal/cachekey"
)

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, table Table, key string) (*Entry, error) {
	return nil, errors.New("backend down")
}

func (failingStore) Set(ctx context.Context, table Table, key string, entry *Entry, ttl time.Duration) error {
	return errors.New("backend down")
}

func (failingStore) Delete(ctx context.Context, table Table, key string) error {
	return errors.New("backend down")
}

func (failingStore) Ping(ctx context.Context) error { return errors.New("backend down") }
func (failingStore) Close() error                   { return nil }

func publicPayload(text string) cachekey.Payload {
	return cachekey.Payload{
		CacheVersion: 1,
		Model:        "gpt-5",
		Intent:       "rules_question",
		UserText:     text,
		Tier:         "free",
		Locale:       "en",
	}
}

func TestCache_LookupAndStore(t *testing.T) {
	ctx := context.Background()
	cache := New(NewMemoryStore(0), cachekey.NewBuilder("test"), time.Hour, nil)

	p := publicPayload("how does trample work")

	t.Run("miss before store", func(t *testing.T) {
		entry, hit := cache.Lookup(ctx, p)
		assert.False(t, hit)
		assert.Nil(t, entry)
	})

	t.Run("hit after store", func(t *testing.T) {
		cache.Store(ctx, p, &Entry{Text: "excess damage carries over"}, 0)

		entry, hit := cache.Lookup(ctx, p)
		require.True(t, hit)
		assert.Equal(t, "excess damage carries over", entry.Text)
		assert.NotZero(t, entry.CreatedAt, "Store must stamp CreatedAt")
	})

	t.Run("scoped payload misses public entry", func(t *testing.T) {
		scoped := p
		scoped.Scope = "user-hash"
		_, hit := cache.Lookup(ctx, scoped)
		assert.False(t, hit)
	})

	t.Run("stats", func(t *testing.T) {
		stats := cache.Stats()
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(2), stats.Misses)
		assert.Equal(t, int64(1), stats.Sets)
	})
}

func TestCache_FailsOpen(t *testing.T) {
	ctx := context.Background()
	cache := New(failingStore{}, nil, 0, nil)

	p := publicPayload("anything")

	t.Run("read error is a miss", func(t *testing.T) {
		entry, hit := cache.Lookup(ctx, p)
		assert.False(t, hit)
		assert.Nil(t, entry)
	})

	t.Run("write error is swallowed", func(t *testing.T) {
		// Must not panic or surface the error.
		cache.Store(ctx, p, &Entry{Text: "fresh answer"}, time.Hour)
	})

	t.Run("errors counted", func(t *testing.T) {
		assert.Equal(t, int64(2), cache.Stats().Errors)
	})
}

func TestCache_NilEntryIgnored(t *testing.T) {
	cache := New(NewMemoryStore(0), nil, 0, nil)
	cache.Store(context.Background(), publicPayload("x"), nil, 0)
	assert.Equal(t, int64(0), cache.Stats().Sets)
}
