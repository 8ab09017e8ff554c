package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactor_Redact(t *testing.T) {
	r := NewRedactor()

	t.Run("guest tokens", func(t *testing.T) {
		out := r.Redact("session for guest_abcdef0123456789 rejected")
		assert.Equal(t, "session for [REDACTED_GUEST_TOKEN] rejected", out)
	})

	t.Run("bearer tokens", func(t *testing.T) {
		out := r.Redact("header was Bearer eyJhbGciOi.payload.sig")
		assert.Contains(t, out, "Bearer [REDACTED]")
		assert.NotContains(t, out, "eyJhbGciOi")
	})

	t.Run("emails", func(t *testing.T) {
		out := r.Redact("user alice@example.com logged in")
		assert.Equal(t, "user [REDACTED_EMAIL] logged in", out)
	})

	t.Run("clean strings untouched", func(t *testing.T) {
		msg := "cache hit on public table"
		assert.Equal(t, msg, r.Redact(msg))
	})

	t.Run("custom pattern", func(t *testing.T) {
		r := NewRedactor()
		r.AddPattern(`deck-[0-9]+`, "[DECK]", "deck_id")
		assert.Equal(t, "reviewing [DECK]", r.Redact("reviewing deck-12345"))
	})

	t.Run("invalid pattern skipped", func(t *testing.T) {
		r := NewRedactor()
		r.AddPattern(`[unclosed`, "x", "bad")
		assert.Equal(t, "still works", r.Redact("still works"))
	})
}
