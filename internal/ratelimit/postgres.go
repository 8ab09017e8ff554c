package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresLimiter implements Limiter on the rate_limit_buckets table using
// a single guarded upsert, so check-then-increment is atomic per statement.
type PostgresLimiter struct {
	db *sql.DB
}

// NewPostgresLimiter creates a Postgres-backed limiter.
func NewPostgresLimiter(db *sql.DB) *PostgresLimiter {
	return &PostgresLimiter{db: db}
}

// EnsureSchema creates the rate_limit_buckets table if missing.
func (l *PostgresLimiter) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rate_limit_buckets (
			identity_hash TEXT NOT NULL,
			route         TEXT NOT NULL,
			bucket_window TEXT NOT NULL,
			count         BIGINT NOT NULL,
			PRIMARY KEY (identity_hash, route, bucket_window)
		)`,
		`CREATE INDEX IF NOT EXISTS rate_limit_buckets_window_idx ON rate_limit_buckets (bucket_window)`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure rate_limit_buckets schema: %w", err)
		}
	}
	return nil
}

// CheckLimit checks and, when allowed, increments the bucket in one
// statement. The conditional upsert either returns the new count (allowed)
// or affects no row (denied); denials never increment.
func (l *PostgresLimiter) CheckLimit(ctx context.Context, identityHash, routeKey string, dailyCap, increment int64) (Result, error) {
	now := time.Now()
	window := windowKey(now)
	resetAt := windowReset(now)

	if increment > dailyCap {
		current, err := l.currentCount(ctx, identityHash, routeKey, window)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Allowed:   false,
			Current:   current,
			Remaining: clampRemaining(dailyCap, current),
			ResetAt:   resetAt,
		}, nil
	}

	query := `
		INSERT INTO rate_limit_buckets (identity_hash, route, bucket_window, count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity_hash, route, bucket_window) DO UPDATE
			SET count = rate_limit_buckets.count + EXCLUDED.count
			WHERE rate_limit_buckets.count + EXCLUDED.count <= $5
		RETURNING count`

	var current int64
	err := l.db.QueryRowContext(ctx, query, identityHash, routeKey, window, increment, dailyCap).Scan(&current)
	if err == sql.ErrNoRows {
		// Guard rejected the update: over cap.
		current, err = l.currentCount(ctx, identityHash, routeKey, window)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Allowed:   false,
			Current:   current,
			Remaining: clampRemaining(dailyCap, current),
			ResetAt:   resetAt,
		}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("rate limit upsert: %w", err)
	}

	return Result{
		Allowed:   true,
		Current:   current,
		Remaining: clampRemaining(dailyCap, current),
		ResetAt:   resetAt,
	}, nil
}

func (l *PostgresLimiter) currentCount(ctx context.Context, identityHash, routeKey, window string) (int64, error) {
	var current int64
	err := l.db.QueryRowContext(ctx,
		`SELECT count FROM rate_limit_buckets WHERE identity_hash = $1 AND route = $2 AND bucket_window = $3`,
		identityHash, routeKey, window,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query rate limit bucket: %w", err)
	}
	return current, nil
}

// PruneWindows removes buckets from windows older than the given day label.
// Callers may run it opportunistically; stale buckets are harmless until
// then because lookups are window-qualified.
func (l *PostgresLimiter) PruneWindows(ctx context.Context, before string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM rate_limit_buckets WHERE bucket_window < $1`, before); err != nil {
		return fmt.Errorf("prune rate limit buckets: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (l *PostgresLimiter) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close is a no-op; the caller owns the shared *sql.DB.
func (l *PostgresLimiter) Close() error {
	return nil
}
