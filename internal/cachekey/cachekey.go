// Package cachekey canonicalizes structured request payloads into stable
// cache keys. Logically equal payloads always hash to the same key, and the
// raw prompt text never becomes a lookup key itself.
package cachekey

import (
	"strings"

	"github.com/manawise/deckgate/internal/identity"
)

// PublicModelSentinel replaces the model name in public (unscoped) payloads
// before canonicalization. Collapsing entries across models raises the
// public hit rate; a public cached answer may have been generated by a
// different model than the caller's current default.
const PublicModelSentinel = "any-model"

// Payload is the closed set of fields that determine a cache key.
// It is never persisted in plaintext next to the cached response.
type Payload struct {
	CacheVersion        int
	Model               string
	SystemPromptHash    string
	Intent              string
	UserText            string // normalized user text
	DeckContextIncluded bool
	DeckHash            *string // nil serializes as JSON null
	Tier                string
	Locale              string
	Scope               string // empty means public; omitted from the canonical form
}

// Public reports whether the payload targets the cross-user cache.
func (p Payload) Public() bool {
	return p.Scope == ""
}

// WithoutScope returns a copy of the payload with the scope stripped,
// suitable for a public-cache lookup of the same request.
func (p Payload) WithoutScope() Payload {
	p.Scope = ""
	return p
}

// canonicalValue builds the map that stableStringify serializes.
// deck_hash is always present (null when unset); scope is absent when empty.
func (p Payload) canonicalValue() map[string]any {
	model := p.Model
	if p.Public() {
		model = PublicModelSentinel
	}

	m := map[string]any{
		"cache_version":         p.CacheVersion,
		"model":                 model,
		"sysPromptHash":         p.SystemPromptHash,
		"intent":                p.Intent,
		"normalized_user_text":  p.UserText,
		"deck_context_included": p.DeckContextIncluded,
		"tier":                  p.Tier,
		"locale":                p.Locale,
	}
	if p.DeckHash != nil {
		m["deck_hash"] = *p.DeckHash
	} else {
		m["deck_hash"] = nil
	}
	if p.Scope != "" {
		m["scope"] = p.Scope
	}
	return m
}

// Canonical returns the canonical serialization of the payload.
func (p Payload) Canonical() string {
	return stableStringify(p.canonicalValue())
}

// Builder derives cache keys from payloads using SHA-256 hashing.
type Builder struct {
	// Prefix is prepended to all generated keys.
	Prefix string
}

// NewBuilder creates a Builder with an optional key prefix.
func NewBuilder(prefix string) *Builder {
	return &Builder{Prefix: prefix}
}

// Key returns the cache key for the payload: [prefix:]sha256(canonical).
func (b *Builder) Key(p Payload) string {
	hash := identity.Hash(p.Canonical())

	if b.Prefix == "" {
		return hash
	}
	var key strings.Builder
	key.WriteString(b.Prefix)
	key.WriteString(":")
	key.WriteString(hash)
	return key.String()
}
