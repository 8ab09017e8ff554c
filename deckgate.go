// Package deckgate is the admission control core for the deck assistant.
// Every inbound assistant message passes through a Gate, which settles three
// questions before any model is invoked: who is asking, whether their quota
// allows another message, and whether a cached response can answer without
// inference. Quota checks fail closed; the response cache fails open.
package deckgate

import (
	"context"
	"time"

	"github.com/manawise/deckgate/internal/respcache"
)

// Tier classifies a caller for quota and cache purposes.
type Tier string

const (
	TierGuest Tier = "guest"
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
)

// Valid reports whether the tier is one of the known values.
func (t Tier) Valid() bool {
	switch t {
	case TierGuest, TierFree, TierPro:
		return true
	}
	return false
}

// Profile describes a registered account as the billing system sees it.
type Profile struct {
	UserID string
	Tier   Tier
}

// ProfileResolver looks up the account profile for an authenticated user.
// Returning a nil profile means the user exists but has no paid standing;
// the gate treats that as the free tier.
type ProfileResolver interface {
	Resolve(ctx context.Context, userID string) (*Profile, error)
}

// ProfileResolverFunc adapts a function to the ProfileResolver interface.
type ProfileResolverFunc func(ctx context.Context, userID string) (*Profile, error)

// Resolve implements ProfileResolver.
func (f ProfileResolverFunc) Resolve(ctx context.Context, userID string) (*Profile, error) {
	return f(ctx, userID)
}

// Request carries one inbound assistant message through the gate. Identity
// fields are raw; the gate hashes them before they touch any store or log.
type Request struct {
	// Identity, in precedence order.
	UserID     string
	GuestToken string
	ClientIP   string
	UserAgent  string

	// RouteKey buckets the durable quota. Defaults to "chat".
	RouteKey string

	// Cache payload fields.
	Model               string
	SystemPromptHash    string
	Intent              string
	UserText            string // normalized before it reaches the gate
	DeckContextIncluded bool
	DeckHash            *string
	Locale              string

	// Private scopes the cached response to this caller. Deck-specific
	// answers must never serve other users.
	Private bool
}

// Decision is the gate's verdict on one request.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	// ResetAt reports when a quota denial clears, or when the current
	// quota window rolls over for allowed requests.
	ResetAt time.Time `json:"reset_at"`

	// Upsell marks denials where a plan upgrade would lift the limit.
	Upsell bool `json:"upsell,omitempty"`

	Tier      Tier  `json:"tier"`
	Remaining int64 `json:"remaining"`

	// CacheHit is set when a cached response can answer the request.
	CacheHit bool             `json:"cache_hit"`
	Cached   *respcache.Entry `json:"cached,omitempty"`

	// CacheKey is the derived key for this request's payload, used to
	// correlate a later Remember call in logs.
	CacheKey string `json:"-"`
}
