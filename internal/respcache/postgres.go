package respcache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStore implements Store on the public_cache and private_cache
// tables. The *sql.DB pool is owned by the caller and shared with the other
// Postgres-backed stores.
type PostgresStore struct {
	db           *sql.DB
	cleanupBatch int
}

// entryMeta is the response_meta column payload.
type entryMeta struct {
	Usage     Usage  `json:"usage"`
	Model     string `json:"model,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// NewPostgresStore creates a Postgres-backed store.
func NewPostgresStore(db *sql.DB, cleanupBatch int) *PostgresStore {
	if cleanupBatch <= 0 {
		cleanupBatch = DefaultCleanupBatch
	}
	return &PostgresStore{db: db, cleanupBatch: cleanupBatch}
}

// EnsureSchema creates the cache tables and expiry indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, table := range []Table{TablePublic, TablePrivate} {
		name := tableName(table)
		stmts := []string{
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					cache_key     TEXT PRIMARY KEY,
					response_text TEXT NOT NULL,
					response_meta JSONB NOT NULL DEFAULT '{}',
					expires_at    TIMESTAMPTZ NOT NULL
				)`, name),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_expires_at_idx ON %s (expires_at)`, name, name),
		}
		for _, stmt := range stmts {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("ensure %s schema: %w", name, err)
			}
		}
	}
	return nil
}

func tableName(t Table) string {
	if t == TablePrivate {
		return "private_cache"
	}
	return "public_cache"
}

// Get returns the entry if a live row exists.
func (s *PostgresStore) Get(ctx context.Context, table Table, key string) (*Entry, error) {
	query := fmt.Sprintf(`
		SELECT response_text, response_meta
		FROM %s
		WHERE cache_key = $1 AND expires_at > now()`, tableName(table))

	var text string
	var metaJSON []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&text, &metaJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", tableName(table), err)
	}

	var meta entryMeta
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		// Unreadable metadata is a miss, not an error.
		return nil, nil
	}

	return &Entry{
		Text:      text,
		Usage:     meta.Usage,
		Model:     meta.Model,
		Fallback:  meta.Fallback,
		CreatedAt: meta.CreatedAt,
	}, nil
}

// Set upserts the entry and triggers bounded lazy cleanup.
func (s *PostgresStore) Set(ctx context.Context, table Table, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	metaJSON, err := json.Marshal(entryMeta{
		Usage:     entry.Usage,
		Model:     entry.Model,
		Fallback:  entry.Fallback,
		CreatedAt: entry.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal response meta: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (cache_key, response_text, response_meta, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_key) DO UPDATE SET
			response_text = EXCLUDED.response_text,
			response_meta = EXCLUDED.response_meta,
			expires_at    = EXCLUDED.expires_at`, tableName(table))

	if _, err := s.db.ExecContext(ctx, query, key, entry.Text, metaJSON, time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("upsert %s: %w", tableName(table), err)
	}

	// Cleanup failure never fails the triggering write.
	_ = s.cleanup(ctx, table) //nolint:errcheck // lazy cleanup is best-effort

	return nil
}

// cleanup deletes up to cleanupBatch expired rows, soonest-expired first.
func (s *PostgresStore) cleanup(ctx context.Context, table Table) error {
	name := tableName(table)
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE cache_key IN (
			SELECT cache_key FROM %s
			WHERE expires_at < now()
			ORDER BY expires_at ASC
			LIMIT $1
		)`, name, name)

	_, err := s.db.ExecContext(ctx, query, s.cleanupBatch)
	return err
}

// Delete removes a key.
func (s *PostgresStore) Delete(ctx context.Context, table Table, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE cache_key = $1`, tableName(table))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete from %s: %w", tableName(table), err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the caller owns the shared *sql.DB.
func (s *PostgresStore) Close() error {
	return nil
}
