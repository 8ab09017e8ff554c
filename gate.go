package deckgate

import (
	"context"
	"log/slog"

	"github.com/manawise/deckgate/internal/cachekey"
	"github.com/manawise/deckgate/internal/guest"
	"github.com/manawise/deckgate/internal/identity"
	"github.com/manawise/deckgate/internal/metrics"
	"github.com/manawise/deckgate/internal/ratelimit"
	"github.com/manawise/deckgate/internal/respcache"
	gateerrors "github.com/manawise/deckgate/pkg/errors"
)

// DefaultRouteKey buckets durable quota counts when the request names none.
const DefaultRouteKey = "chat"

// Default daily caps per authenticated tier.
const (
	DefaultFreeDailyCap int64 = 25
	DefaultProDailyCap  int64 = 300
)

// Gate runs the admission pipeline: identity, quota, then cache. It owns no
// storage; the tracker, limiter, and cache are built by the caller so all
// three can share one backend connection.
type Gate struct {
	tracker  *guest.Tracker
	limiter  ratelimit.Limiter
	cache    *respcache.Cache
	resolver ProfileResolver

	caps         map[Tier]int64
	cacheVersion int
	logger       *slog.Logger
}

// NewGate creates a gate over the given quota and cache components.
func NewGate(tracker *guest.Tracker, limiter ratelimit.Limiter, cache *respcache.Cache, opts ...Option) *Gate {
	g := &Gate{
		tracker: tracker,
		limiter: limiter,
		cache:   cache,
		caps: map[Tier]int64{
			TierFree: DefaultFreeDailyCap,
			TierPro:  DefaultProDailyCap,
		},
		cacheVersion: 1,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check runs one request through the gate. It never returns an error: every
// outcome, including backend failure, is a Decision the handler can render.
func (g *Gate) Check(ctx context.Context, req Request) *Decision {
	identityHash := g.identify(req)
	if identityHash == "" {
		return g.deny("unknown", gateerrors.NewMissingIdentityError(), false)
	}

	tier, gerr := g.resolveTier(ctx, req)
	if gerr != nil {
		return g.deny(string(tier), gerr, false)
	}

	var dec *Decision
	if tier == TierGuest {
		dec = g.checkGuest(ctx, req, identityHash)
	} else {
		dec = g.checkDaily(ctx, req, identityHash, tier)
	}
	if !dec.Allowed {
		return dec
	}

	metrics.AdmissionDecisions.WithLabelValues(string(tier), "allowed").Inc()
	g.lookupCache(ctx, req, identityHash, dec)
	return dec
}

// Remember writes a freshly computed response back to the cache using the
// same payload Check derived. Failures are swallowed by the cache layer; the
// response already reached the user.
func (g *Gate) Remember(ctx context.Context, req Request, entry *respcache.Entry) {
	identityHash := g.identify(req)
	if identityHash == "" || entry == nil {
		return
	}
	tier, gerr := g.resolveTier(ctx, req)
	if gerr != nil {
		// A cache write is never worth a second resolver retry.
		g.logger.Debug("skipping cache write, tier unresolved", "code", gerr.Code)
		return
	}
	g.cache.Store(ctx, g.payloadFor(req, tier, identityHash), entry, 0)
}

// identify returns the hashed admission identity, applying the precedence
// user ID, then guest token, then client IP. Empty means untrackable.
func (g *Gate) identify(req Request) string {
	switch {
	case req.UserID != "":
		return identity.Hash(req.UserID)
	case req.GuestToken != "":
		return identity.Hash(req.GuestToken)
	case req.ClientIP != "":
		return identity.Hash(req.ClientIP)
	}
	return ""
}

// resolveTier settles the caller's tier. A resolver failure denies closed:
// handing out free-tier quota to a possibly-pro user on a billing outage is
// better than unlimited, but wrong answers about caps are not.
func (g *Gate) resolveTier(ctx context.Context, req Request) (Tier, *gateerrors.GateError) {
	if req.UserID == "" {
		return TierGuest, nil
	}
	if g.resolver == nil {
		return TierFree, nil
	}

	profile, err := g.resolver.Resolve(ctx, req.UserID)
	if err != nil {
		metrics.QuotaBackendErrors.WithLabelValues("profile").Inc()
		g.logger.Error("profile resolver failed, denying",
			"user", identity.Mask(req.UserID),
			"error", err,
		)
		return TierFree, gateerrors.NewStorageUnavailableError()
	}
	if profile == nil || !profile.Tier.Valid() {
		return TierFree, nil
	}
	return profile.Tier, nil
}

func (g *Gate) checkGuest(ctx context.Context, req Request, identityHash string) *Decision {
	var ipHash, uaHash string
	if req.ClientIP != "" {
		ipHash = identity.Hash(req.ClientIP)
	}
	if req.UserAgent != "" {
		uaHash = identity.Hash(req.UserAgent)
	}

	res := g.tracker.Consume(ctx, identityHash, ipHash, uaHash)
	if res.Allowed {
		return &Decision{
			Allowed:   true,
			Tier:      TierGuest,
			Remaining: int64(res.Remaining),
			ResetAt:   res.ResetAt,
		}
	}

	switch res.Code {
	case gateerrors.CodeGuestLimitExceeded:
		return g.deny(string(TierGuest), gateerrors.NewGuestLimitError(res.ResetAt), true)
	default:
		return g.deny(string(TierGuest), gateerrors.NewStorageUnavailableError(), false)
	}
}

func (g *Gate) checkDaily(ctx context.Context, req Request, identityHash string, tier Tier) *Decision {
	routeKey := req.RouteKey
	if routeKey == "" {
		routeKey = DefaultRouteKey
	}

	res, err := g.limiter.CheckLimit(ctx, identityHash, routeKey, g.caps[tier], 1)
	if err != nil {
		metrics.QuotaBackendErrors.WithLabelValues("ratelimit").Inc()
		g.logger.Error("rate limit store failed, denying",
			"route", routeKey,
			"tier", string(tier),
			"error", err,
		)
		return g.deny(string(tier), gateerrors.NewStorageUnavailableError(), false)
	}
	if !res.Allowed {
		metrics.RateLimitDenials.WithLabelValues(routeKey).Inc()
		return g.deny(string(tier), gateerrors.NewRateLimitError(res.ResetAt), tier != TierPro)
	}

	return &Decision{
		Allowed:   true,
		Tier:      tier,
		Remaining: res.Remaining,
		ResetAt:   res.ResetAt,
	}
}

// lookupCache fills the cache fields of an allowed decision. Private
// requests check their scoped entry first and fall back to the public table;
// a public answer is still a correct answer for a private question without
// deck context attached to the key.
func (g *Gate) lookupCache(ctx context.Context, req Request, identityHash string, dec *Decision) {
	p := g.payloadFor(req, dec.Tier, identityHash)
	dec.CacheKey = g.cache.Key(p)

	if entry, ok := g.cache.Lookup(ctx, p); ok {
		dec.CacheHit = true
		dec.Cached = entry
		return
	}
	if !req.Private {
		return
	}
	if entry, ok := g.cache.Lookup(ctx, p.WithoutScope()); ok {
		dec.CacheHit = true
		dec.Cached = entry
	}
}

func (g *Gate) payloadFor(req Request, tier Tier, identityHash string) cachekey.Payload {
	p := cachekey.Payload{
		CacheVersion:        g.cacheVersion,
		Model:               req.Model,
		SystemPromptHash:    req.SystemPromptHash,
		Intent:              req.Intent,
		UserText:            req.UserText,
		DeckContextIncluded: req.DeckContextIncluded,
		DeckHash:            req.DeckHash,
		Tier:                string(tier),
		Locale:              req.Locale,
	}
	if req.Private {
		p.Scope = identityHash
	}
	return p
}

func (g *Gate) deny(tier string, gerr *gateerrors.GateError, upsell bool) *Decision {
	metrics.AdmissionDecisions.WithLabelValues(tier, gerr.Code).Inc()
	return &Decision{
		Code:    gerr.Code,
		Message: gerr.Message,
		ResetAt: gerr.ResetAt,
		Upsell:  upsell,
		Tier:    Tier(tier),
	}
}

// CacheStats exposes the response cache counters.
func (g *Gate) CacheStats() respcache.Stats {
	return g.cache.Stats()
}
