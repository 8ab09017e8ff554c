package guest

import (
	"context"
	"log/slog"
	"time"

	"github.com/manawise/deckgate/internal/metrics"
	gateerrors "github.com/manawise/deckgate/pkg/errors"
)

// Result is the outcome of one guest quota check.
type Result struct {
	Allowed   bool
	Code      string // denial code, empty when allowed
	Count     int    // message count after the check
	Remaining int
	ResetAt   time.Time
}

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	MessageLimit int           // per-session cap (default 10)
	SessionTTL   time.Duration // sliding expiry (default 30 days)
	Logger       *slog.Logger
}

// Tracker applies the guest quota state machine over a Store.
type Tracker struct {
	store  Store
	limit  int
	ttl    time.Duration
	logger *slog.Logger
}

// NewTracker creates a guest quota tracker.
func NewTracker(store Store, cfg TrackerConfig) *Tracker {
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = DefaultMessageLimit
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Tracker{
		store:  store,
		limit:  cfg.MessageLimit,
		ttl:    cfg.SessionTTL,
		logger: cfg.Logger,
	}
}

// Limit returns the configured per-session message cap.
func (t *Tracker) Limit() int {
	return t.limit
}

// Consume runs one quota check for a guest message:
//
//	no token            -> denied, the caller cannot be tracked
//	no row              -> first message creates the session with count 1
//	expired row         -> delete and recreate with count 1 (window resets)
//	count < limit       -> increment and refresh the sliding expiry
//	count >= limit      -> denied without incrementing, current count reported
//	any storage failure -> denied (fail closed)
func (t *Tracker) Consume(ctx context.Context, tokenHash, ipHash, uaHash string) Result {
	if tokenHash == "" {
		return Result{Code: gateerrors.CodeMissingIdentity}
	}

	session, err := t.store.Get(ctx, tokenHash)
	if err != nil {
		return t.denyStorage("read", err)
	}

	now := time.Now()
	if session != nil && now.After(session.ExpiresAt) {
		if err := t.store.Delete(ctx, tokenHash); err != nil {
			return t.denyStorage("delete", err)
		}
		session = nil
	}

	if session == nil {
		session = &Session{
			TokenHash:     tokenHash,
			MessageCount:  1,
			IPHash:        ipHash,
			UserAgentHash: uaHash,
			CreatedAt:     now,
			LastMessageAt: now,
			ExpiresAt:     now.Add(t.ttl),
		}
		if err := t.store.Put(ctx, session); err != nil {
			return t.denyStorage("create", err)
		}
		return Result{
			Allowed:   true,
			Count:     1,
			Remaining: t.limit - 1,
			ResetAt:   session.ExpiresAt,
		}
	}

	if session.MessageCount >= t.limit {
		return Result{
			Code:    gateerrors.CodeGuestLimitExceeded,
			Count:   session.MessageCount,
			ResetAt: session.ExpiresAt,
		}
	}

	session.MessageCount++
	session.LastMessageAt = now
	session.ExpiresAt = now.Add(t.ttl)
	if err := t.store.Put(ctx, session); err != nil {
		return t.denyStorage("update", err)
	}

	return Result{
		Allowed:   true,
		Count:     session.MessageCount,
		Remaining: t.limit - session.MessageCount,
		ResetAt:   session.ExpiresAt,
	}
}

func (t *Tracker) denyStorage(op string, err error) Result {
	metrics.QuotaBackendErrors.WithLabelValues("guest").Inc()
	t.logger.Error("guest session store failed, denying",
		"op", op,
		"error", err,
	)
	return Result{Code: gateerrors.CodeStorageUnavailable}
}
