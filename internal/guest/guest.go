// Package guest tracks per-guest message quotas with a sliding expiry.
// Every identity field arrives pre-hashed; this package never sees raw
// tokens, IPs, or user agents. Quota checks fail closed: when the store is
// unreachable the guest is denied, because cost control outranks
// availability here.
package guest

import (
	"context"
	"time"
)

const (
	// DefaultSessionTTL is the sliding lifetime of a guest session.
	DefaultSessionTTL = 30 * 24 * time.Hour
	// DefaultMessageLimit is the per-session message cap.
	DefaultMessageLimit = 10
)

// Session is the stored quota record for one hashed guest token.
type Session struct {
	TokenHash     string    `json:"token_hash"`
	MessageCount  int       `json:"message_count"`
	IPHash        string    `json:"ip_hash"`
	UserAgentHash string    `json:"user_agent_hash"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Store persists guest sessions keyed by token hash.
type Store interface {
	// Get returns the session, or nil, nil when no row exists.
	Get(ctx context.Context, tokenHash string) (*Session, error)

	// Put upserts the session wholesale, replacing any prior row.
	Put(ctx context.Context, session *Session) error

	// Delete removes the session.
	Delete(ctx context.Context, tokenHash string) error

	// Ping checks backend health.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
