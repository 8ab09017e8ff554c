package deckgate

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	defaultProfileTTL      = time.Minute
	profileCleanupInterval = 5 * time.Minute
)

// cachingResolver memoizes profile lookups. Tier changes take up to one TTL
// to reach the gate, which is acceptable for quota purposes.
type cachingResolver struct {
	inner ProfileResolver
	memo  *gocache.Cache
}

func newCachingResolver(inner ProfileResolver, ttl time.Duration) *cachingResolver {
	if ttl <= 0 {
		ttl = defaultProfileTTL
	}
	return &cachingResolver{
		inner: inner,
		memo:  gocache.New(ttl, profileCleanupInterval),
	}
}

func (r *cachingResolver) Resolve(ctx context.Context, userID string) (*Profile, error) {
	if cached, ok := r.memo.Get(userID); ok {
		return cached.(*Profile), nil
	}

	profile, err := r.inner.Resolve(ctx, userID)
	if err != nil {
		// Errors are not memoized; the next request retries the store.
		return nil, err
	}

	r.memo.SetDefault(userID, profile)
	return profile, nil
}
