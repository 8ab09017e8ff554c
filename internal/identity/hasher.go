// Package identity provides one-way hashing for caller identity strings.
// User IDs, guest tokens, IPs, and user agents are hashed before they are
// used as lookup keys anywhere in the system; raw values never reach a store.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the SHA-256 hex digest of a raw identity string.
// It is deterministic and pure. The empty string hashes like any other
// input, so callers that want "no identity" to mean denial must check for
// absence before calling.
func Hash(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Mask returns a log-safe representation of an identity string.
// Example: "guest_ab...9f2c"
func Mask(raw string) string {
	if len(raw) <= 12 {
		return "***"
	}
	return raw[:8] + "..." + raw[len(raw)-4:]
}
