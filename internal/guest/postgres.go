package guest

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStore implements Store on the guest_sessions table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the guest_sessions table if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS guest_sessions (
			token_hash      TEXT PRIMARY KEY,
			message_count   INTEGER NOT NULL,
			ip_hash         TEXT NOT NULL DEFAULT '',
			user_agent_hash TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL,
			last_message_at TIMESTAMPTZ NOT NULL,
			expires_at      TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS guest_sessions_expires_at_idx ON guest_sessions (expires_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure guest_sessions schema: %w", err)
		}
	}
	return nil
}

// Get returns the session, or nil, nil when absent.
func (s *PostgresStore) Get(ctx context.Context, tokenHash string) (*Session, error) {
	query := `
		SELECT token_hash, message_count, ip_hash, user_agent_hash,
		       created_at, last_message_at, expires_at
		FROM guest_sessions
		WHERE token_hash = $1`

	var session Session
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&session.TokenHash, &session.MessageCount,
		&session.IPHash, &session.UserAgentHash,
		&session.CreatedAt, &session.LastMessageAt, &session.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query guest session: %w", err)
	}
	return &session, nil
}

// Put upserts the session wholesale.
func (s *PostgresStore) Put(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO guest_sessions
			(token_hash, message_count, ip_hash, user_agent_hash,
			 created_at, last_message_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (token_hash) DO UPDATE SET
			message_count   = EXCLUDED.message_count,
			ip_hash         = EXCLUDED.ip_hash,
			user_agent_hash = EXCLUDED.user_agent_hash,
			created_at      = EXCLUDED.created_at,
			last_message_at = EXCLUDED.last_message_at,
			expires_at      = EXCLUDED.expires_at`

	_, err := s.db.ExecContext(ctx, query,
		session.TokenHash, session.MessageCount,
		session.IPHash, session.UserAgentHash,
		session.CreatedAt, session.LastMessageAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert guest session: %w", err)
	}
	return nil
}

// Delete removes the session.
func (s *PostgresStore) Delete(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM guest_sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("delete guest session: %w", err)
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
