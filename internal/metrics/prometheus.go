// Package metrics provides Prometheus metrics for the admission gate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "deckgate"

var (
	// AdmissionDecisions counts gate decisions by tier and outcome code.
	// Allowed decisions use the code "allowed".
	AdmissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_decisions_total",
			Help:      "Admission decisions by tier and outcome code",
		},
		[]string{"tier", "code"},
	)

	// CacheHits counts response cache hits per table.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Response cache hits by table",
		},
		[]string{"table"},
	)

	// CacheMisses counts response cache misses per table.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Response cache misses by table",
		},
		[]string{"table"},
	)

	// CacheErrors counts swallowed cache storage errors by operation.
	// These never fail a request; the cache fails open.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Swallowed cache storage errors by operation",
		},
		[]string{"op"},
	)

	// RateLimitDenials counts durable quota denials by route.
	RateLimitDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_denials_total",
			Help:      "Durable rate limiter denials by route",
		},
		[]string{"route"},
	)

	// QuotaBackendErrors counts quota-store failures that forced a
	// fail-closed denial.
	QuotaBackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_backend_errors_total",
			Help:      "Quota store failures resulting in fail-closed denials",
		},
		[]string{"store"},
	)

	// HTTPRequestDuration tracks server request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "status"},
	)
)
