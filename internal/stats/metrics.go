package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// emailsTotal counts per-recipient outcomes.
	// Labels:
	// - status: "sent" or "failed"
	emailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promo",
			Subsystem: "dispatch",
			Name:      "emails_total",
			Help:      "Number of promotional emails attempted, by outcome.",
		},
		[]string{"status"},
	)

	dispatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "promo",
			Subsystem: "dispatch",
			Name:      "runs_total",
			Help:      "Number of completed dispatch calls.",
		},
	)

	// HTTPRequestsTotal counts API requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promo",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDurationSeconds observes request latency in seconds.
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "promo",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
