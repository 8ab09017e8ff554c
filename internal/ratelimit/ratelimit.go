// Package ratelimit provides the durable per-identity daily quota for
// authenticated tiers. Counts are bucketed by identity + route + UTC
// calendar day; an allowed call increments atomically with the check and a
// denied call never increments.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one quota check.
type Result struct {
	Allowed   bool
	Current   int64 // count after the check (unchanged when denied)
	Remaining int64
	ResetAt   time.Time // when the window rolls over
}

// Limiter is the durable daily quota contract. Implementations must make
// check-then-increment atomic per identity+route+window; where the backend
// cannot, the narrow over-limit race under simultaneous same-identity
// requests is documented on the implementation.
type Limiter interface {
	CheckLimit(ctx context.Context, identityHash, routeKey string, dailyCap, increment int64) (Result, error)

	// Ping checks backend health.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// windowKey returns the UTC calendar-day bucket label for now.
func windowKey(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// windowReset returns the next UTC midnight after now.
func windowReset(now time.Time) time.Time {
	day := now.UTC().Truncate(24 * time.Hour)
	return day.Add(24 * time.Hour)
}

func clampRemaining(cap, current int64) int64 {
	remaining := cap - current
	if remaining < 0 {
		return 0
	}
	return remaining
}
