package deckgate

import (
	"log/slog"
	"time"
)

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the gate's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithProfileResolver sets the account profile resolver. Lookups are
// memoized briefly so a chatty client does not hammer the billing store.
func WithProfileResolver(resolver ProfileResolver, memoTTL time.Duration) Option {
	return func(g *Gate) {
		if resolver == nil {
			return
		}
		g.resolver = newCachingResolver(resolver, memoTTL)
	}
}

// WithTierCaps overrides the daily message caps for the authenticated tiers.
// Non-positive values keep the defaults.
func WithTierCaps(freeDailyCap, proDailyCap int64) Option {
	return func(g *Gate) {
		if freeDailyCap > 0 {
			g.caps[TierFree] = freeDailyCap
		}
		if proDailyCap > 0 {
			g.caps[TierPro] = proDailyCap
		}
	}
}

// WithCacheVersion sets the cache_version folded into every cache key.
// Bumping it invalidates all existing entries without touching storage.
func WithCacheVersion(version int) Option {
	return func(g *Gate) {
		if version > 0 {
			g.cacheVersion = version
		}
	}
}
