// Package metrics holds the prometheus collectors of remotesync.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotesync_sync_total",
			Help: "Total number of account sync passes by outcome",
		},
		[]string{"provider", "outcome"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remotesync_sync_duration_seconds",
			Help:    "Account sync pass duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"provider"},
	)

	RelationsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotesync_relations_deleted_total",
			Help: "Total number of stale relation rows deleted by reconciliation",
		},
		[]string{"provider", "kind"},
	)

	PruneSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotesync_prune_skipped_total",
			Help: "Total number of passes whose deletions were skipped because they were partial",
		},
		[]string{"provider"},
	)

	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotesync_pages_fetched_total",
			Help: "Total number of provider pages fetched",
		},
		[]string{"provider"},
	)

	PageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotesync_page_failures_total",
			Help: "Total number of provider pages that failed to load",
		},
		[]string{"provider", "reason"},
	)

	TokenRefresh = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotesync_token_refresh_total",
			Help: "Total number of OAuth token refreshes by outcome",
		},
		[]string{"provider", "outcome"},
	)

	LastSyncEnd = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "remotesync_last_sync_end_timestamp",
			Help: "Unix timestamp of when the last sync pass of a provider ended",
		},
		[]string{"provider"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotesync_http_requests_total",
			Help: "Total number of HTTP API requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)
)

// Outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
	OutcomeNoSession = "no_session"
)
