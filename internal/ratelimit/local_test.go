package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSmoother_Allow(t *testing.T) {
	t.Run("burst then throttle", func(t *testing.T) {
		s := NewSmoother(SmootherConfig{RPM: 60, Burst: 3})
		defer s.Close()

		for i := 0; i < 3; i++ {
			assert.True(t, s.Allow("id-1"), "burst request %d", i)
		}
		assert.False(t, s.Allow("id-1"), "burst exhausted")
	})

	t.Run("identities independent", func(t *testing.T) {
		s := NewSmoother(SmootherConfig{RPM: 60, Burst: 1})
		defer s.Close()

		assert.True(t, s.Allow("id-a"))
		assert.False(t, s.Allow("id-a"))
		assert.True(t, s.Allow("id-b"))
	})

	t.Run("idle limiters evicted", func(t *testing.T) {
		s := NewSmoother(SmootherConfig{RPM: 60, Burst: 1, IdleTTL: 10 * time.Millisecond})
		defer s.Close()

		s.Allow("id-x")

		time.Sleep(25 * time.Millisecond)
		s.cleanup()

		s.mu.RLock()
		_, exists := s.limiters["id-x"]
		s.mu.RUnlock()
		assert.False(t, exists)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		s := NewSmoother(SmootherConfig{})
		s.Close()
		s.Close()
	})
}
