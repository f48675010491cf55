// Package metrics provides Prometheus metrics for the Laurel service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRunsTotal tracks completed sync runs by type and terminal status
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of sync runs by type and status",
		},
		[]string{"sync_type", "status"},
	)

	// SyncRunDuration tracks sync run duration in seconds
	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "laurel",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"sync_type"},
	)

	// BookingsReconciled tracks reconciler outcomes
	BookingsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "sync",
			Name:      "bookings_reconciled_total",
			Help:      "Total number of bookings reconciled by outcome",
		},
		[]string{"outcome"},
	)

	// ProviderRequestsTotal tracks outbound requests to the provider
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Total number of outbound provider requests",
		},
		[]string{"method", "status_code"},
	)

	// ProviderRequestDuration tracks outbound request duration
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "laurel",
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound provider requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// ProviderRateLimited tracks requests refused by the outbound budget
	ProviderRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "provider",
			Name:      "rate_limited_total",
			Help:      "Total number of requests refused by the outbound rate limit",
		},
	)

	// ProviderRetries tracks 429-driven retries against the provider
	ProviderRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "provider",
			Name:      "retries_total",
			Help:      "Total number of retried provider requests after 429",
		},
	)

	// GroupsCreated tracks groups created by the grouping pass
	GroupsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "grouping",
			Name:      "groups_created_total",
			Help:      "Total number of tour groups created",
		},
	)

	// GroupingSkipped tracks grouping passes skipped on lock contention
	GroupingSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "grouping",
			Name:      "passes_skipped_total",
			Help:      "Total number of grouping passes skipped because the lock was held",
		},
	)

	// WebhooksReceived tracks received webhook deliveries by topic and outcome
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "webhook",
			Name:      "received_total",
			Help:      "Total number of webhook deliveries by topic and outcome",
		},
		[]string{"topic", "status"},
	)

	// InboundRateLimited tracks inbound requests rejected with 429
	InboundRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "laurel",
			Subsystem: "ratelimit",
			Name:      "rejected_total",
			Help:      "Total number of inbound requests rejected by the rate limiter",
		},
		[]string{"operation"},
	)
)
