package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/manawise/deckgate/internal/metrics"
	"github.com/manawise/deckgate/internal/observability"
	"github.com/manawise/deckgate/internal/ratelimit"
	gateerrors "github.com/manawise/deckgate/pkg/errors"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		metrics.HTTPRequestDuration.
			WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

func loggingMiddleware(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.WithRequestID(r.Context()).RedactedInfo("request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// smoothingMiddleware applies per-IP burst smoothing before any handler
// runs. It protects the gate itself; the durable quota inside the gate is
// unaffected by it.
func smoothingMiddleware(smoother *ratelimit.Smoother, clientIP func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if smoother == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if ip != "" && !smoother.Allow(ip) {
				metrics.RateLimitDenials.WithLabelValues("smoothing").Inc()
				writeError(w, http.StatusTooManyRequests,
					gateerrors.CodeRateLimitExceeded, "too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
