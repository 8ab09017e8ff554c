package respcache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/manawise/deckgate/internal/cachekey"
	"github.com/manawise/deckgate/internal/metrics"
)

// Cache is the fail-open facade over the two cache tables. The cache is a
// pure optimization: a storage failure here is a miss or a dropped write,
// never a denial and never a failed response. The fail-closed quota path
// lives in the guest and ratelimit packages; keep the two separate.
type Cache struct {
	store      Store
	keys       *cachekey.Builder
	defaultTTL time.Duration
	logger     *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
	errs   atomic.Int64
}

// Stats holds cache counters for monitoring.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// New creates a Cache over the given store.
func New(store Store, keys *cachekey.Builder, defaultTTL time.Duration, logger *slog.Logger) *Cache {
	if keys == nil {
		keys = cachekey.NewBuilder("deckgate")
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:      store,
		keys:       keys,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// tableFor routes scoped payloads to the private table.
func tableFor(p cachekey.Payload) Table {
	if p.Public() {
		return TablePublic
	}
	return TablePrivate
}

// Key returns the derived cache key for a payload.
func (c *Cache) Key(p cachekey.Payload) string {
	return c.keys.Key(p)
}

// Lookup attempts a cache read for the payload. A storage error is treated
// as a miss and logged; the caller proceeds to inference either way.
func (c *Cache) Lookup(ctx context.Context, p cachekey.Payload) (*Entry, bool) {
	table := tableFor(p)

	entry, err := c.store.Get(ctx, table, c.keys.Key(p))
	if err != nil {
		c.errs.Add(1)
		metrics.CacheErrors.WithLabelValues("get").Inc()
		c.logger.Warn("cache read failed, treating as miss",
			"table", string(table),
			"error", err,
		)
		return nil, false
	}
	if entry == nil {
		c.misses.Add(1)
		metrics.CacheMisses.WithLabelValues(string(table)).Inc()
		return nil, false
	}

	c.hits.Add(1)
	metrics.CacheHits.WithLabelValues(string(table)).Inc()
	return entry, true
}

// Store writes a freshly computed response. A storage error is logged and
// swallowed so the already-computed answer still reaches the user; it must
// never block or fail the response path.
func (c *Cache) Store(ctx context.Context, p cachekey.Payload, entry *Entry, ttl time.Duration) {
	if entry == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}

	table := tableFor(p)
	if err := c.store.Set(ctx, table, c.keys.Key(p), entry, ttl); err != nil {
		c.errs.Add(1)
		metrics.CacheErrors.WithLabelValues("set").Inc()
		c.logger.Warn("cache write failed, response unaffected",
			"table", string(table),
			"error", err,
		)
		return
	}
	c.sets.Add(1)
}

// Ping checks the underlying store.
func (c *Cache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Stats returns cache counters.
func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    c.sets.Load(),
		Errors:  c.errs.Load(),
		HitRate: hitRate,
	}
}
