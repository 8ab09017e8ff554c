// Package respcache provides the two-tier response cache for assistant
// answers: a public cross-user table and a private per-scope table. Values
// are reproducible and never a source of truth, so every write is
// last-writer-wins and the whole cache is safe to share across instances.
package respcache

import (
	"context"
	"time"
)

// Table identifies one of the two physically separate cache tables.
// Private lookups additionally carry the scope inside the key, so the
// separation is a double guard against cross-user leakage.
type Table string

const (
	TablePublic  Table = "public"
	TablePrivate Table = "private"
)

const (
	// DefaultTTL is the default lifetime of a cached response.
	DefaultTTL = 3 * time.Hour
	// DefaultCleanupBatch bounds how many expired rows a single write may
	// remove during lazy cleanup.
	DefaultCleanupBatch = 100
)

// Usage holds token accounting for a cached response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Entry is a cached assistant response with its metadata.
type Entry struct {
	Text      string `json:"text"`
	Usage     Usage  `json:"usage"`
	Model     string `json:"model,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
	CreatedAt int64  `json:"created_at"` // Unix timestamp when cached
}

// Store is the storage backend for both cache tables.
type Store interface {
	// Get returns the entry if a row exists and has not expired.
	// Absent and expired rows are both a plain nil, nil miss; callers
	// cannot and must not distinguish the two.
	Get(ctx context.Context, table Table, key string) (*Entry, error)

	// Set upserts the entry under key with expires_at = now + ttl,
	// overwriting any prior value. If ttl <= 0 the default TTL applies.
	// Every Set triggers bounded lazy cleanup of expired rows; a cleanup
	// failure is swallowed and never fails the write.
	Set(ctx context.Context, table Table, key string, entry *Entry, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, table Table, key string) error

	// Ping checks backend health.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
