package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Mutation metrics
	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsync_mutations_total",
			Help: "Total number of optimistic mutations by operation and result",
		},
		[]string{"op", "result"},
	)

	RollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsync_rollbacks_total",
			Help: "Total number of optimistic mutations rolled back after a gateway failure",
		},
		[]string{"op"},
	)

	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotsync_gateway_request_duration_seconds",
			Help:    "Remote gateway call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Reconciliation metrics
	EventsReconciledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsync_events_reconciled_total",
			Help: "Total number of change events merged into the slot store by kind",
		},
		[]string{"kind"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsync_events_dropped_total",
			Help: "Total number of change events ignored by reason",
		},
		[]string{"reason"},
	)

	ResyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slotsync_resync_duration_seconds",
			Help:    "Time taken by a full resync from the remote table",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Connectivity metrics
	FeedConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotsync_feed_connected",
			Help: "Whether the change feed is connected (1 = connected, 0 = disconnected)",
		},
	)

	// Store metrics
	SlotsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slotsync_slots_total",
			Help: "Number of slots in the local store by state",
		},
		[]string{"state"},
	)

	// Table metrics (server side)
	TableWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotsync_table_writes_total",
			Help: "Total number of writes applied to the authoritative table by operation",
		},
		[]string{"op"},
	)

	FeedSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotsync_feed_subscribers",
			Help: "Number of active change stream subscribers",
		},
	)
)

func init() {
	prometheus.MustRegister(MutationsTotal)
	prometheus.MustRegister(RollbacksTotal)
	prometheus.MustRegister(GatewayRequestDuration)
	prometheus.MustRegister(EventsReconciledTotal)
	prometheus.MustRegister(EventsDroppedTotal)
	prometheus.MustRegister(ResyncDuration)
	prometheus.MustRegister(FeedConnected)
	prometheus.MustRegister(SlotsTotal)
	prometheus.MustRegister(TableWritesTotal)
	prometheus.MustRegister(FeedSubscribers)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
