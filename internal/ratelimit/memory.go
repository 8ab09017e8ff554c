package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is an in-process Limiter for tests and single-instance
// deployments. The mutex makes check-then-increment atomic per process.
type MemoryLimiter struct {
	mu     sync.Mutex
	window string
	counts map[string]int64
}

// NewMemoryLimiter creates an in-memory limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{counts: make(map[string]int64)}
}

// CheckLimit checks and, when allowed, increments the bucket.
func (l *MemoryLimiter) CheckLimit(ctx context.Context, identityHash, routeKey string, dailyCap, increment int64) (Result, error) {
	now := time.Now()
	window := windowKey(now)
	resetAt := windowReset(now)

	l.mu.Lock()
	defer l.mu.Unlock()

	// A new day drops all previous buckets at once.
	if window != l.window {
		l.window = window
		l.counts = make(map[string]int64)
	}

	key := identityHash + "|" + routeKey
	current := l.counts[key]

	if current+increment > dailyCap {
		return Result{
			Allowed:   false,
			Current:   current,
			Remaining: clampRemaining(dailyCap, current),
			ResetAt:   resetAt,
		}, nil
	}

	current += increment
	l.counts[key] = current
	return Result{
		Allowed:   true,
		Current:   current,
		Remaining: clampRemaining(dailyCap, current),
		ResetAt:   resetAt,
	}, nil
}

// Ping always succeeds for the memory limiter.
func (l *MemoryLimiter) Ping(ctx context.Context) error {
	return nil
}

// Close releases nothing for the memory limiter.
func (l *MemoryLimiter) Close() error {
	return nil
}
