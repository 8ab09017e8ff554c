package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Smoother provides per-identity in-process burst smoothing in front of the
// durable daily quota. It is not durable and not shared across instances;
// its only job is to keep one caller from stampeding the gate within a
// single process.
type Smoother struct {
	mu         sync.RWMutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	limit      rate.Limit
	burst      int
	idleTTL    time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// SmootherConfig configures a Smoother.
type SmootherConfig struct {
	RPM     int           // requests per minute per identity (default 60)
	Burst   int           // burst size (default 10)
	IdleTTL time.Duration // drop limiters idle longer than this (default 10m)
}

// NewSmoother creates a smoothing limiter and starts its cleanup loop.
func NewSmoother(cfg SmootherConfig) *Smoother {
	if cfg.RPM <= 0 {
		cfg.RPM = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}

	s := &Smoother{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		limit:      rate.Limit(float64(cfg.RPM) / 60.0),
		burst:      cfg.Burst,
		idleTTL:    cfg.IdleTTL,
		stop:       make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Allow reports whether the identity may proceed right now.
func (s *Smoother) Allow(id string) bool {
	return s.getLimiter(id).Allow()
}

func (s *Smoother) getLimiter(id string) *rate.Limiter {
	s.mu.RLock()
	limiter, exists := s.limiters[id]
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !exists {
		// Double-check after acquiring the write lock.
		if limiter, exists = s.limiters[id]; !exists {
			limiter = rate.NewLimiter(s.limit, s.burst)
			s.limiters[id] = limiter
		}
	}
	s.lastAccess[id] = time.Now()
	return limiter
}

func (s *Smoother) cleanupLoop() {
	ticker := time.NewTicker(s.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

func (s *Smoother) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, last := range s.lastAccess {
		if now.Sub(last) > s.idleTTL {
			delete(s.limiters, id)
			delete(s.lastAccess, id)
		}
	}
}

// Close stops the cleanup loop.
func (s *Smoother) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}
