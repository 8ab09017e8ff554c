package respcache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis. Expiry is delegated to Redis key
// TTLs, so the bounded lazy cleanup the SQL store performs is a no-op here.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisStore creates a Redis-backed store. The client is owned by the
// caller and shared with the Redis rate limiter.
func NewRedisStore(client redis.UniversalClient, namespace string) *RedisStore {
	if namespace == "" {
		namespace = "deckgate"
	}
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) keyFor(table Table, key string) string {
	return fmt.Sprintf("%s:cache:%s:%s", s.namespace, table, key)
}

// Get returns the entry if the key is still live.
func (s *RedisStore) Get(ctx context.Context, table Table, key string) (*Entry, error) {
	data, err := s.client.Get(ctx, s.keyFor(table, key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Unreadable entry is a miss, not an error.
		return nil, nil
	}
	return &entry, nil
}

// Set stores the entry with a Redis TTL.
func (s *RedisStore) Set(ctx context.Context, table Table, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := s.client.Set(ctx, s.keyFor(table, key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a key.
func (s *RedisStore) Delete(ctx context.Context, table Table, key string) error {
	if err := s.client.Del(ctx, s.keyFor(table, key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the shared client.
func (s *RedisStore) Close() error {
	return nil
}
