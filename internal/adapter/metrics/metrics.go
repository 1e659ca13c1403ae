package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the analytics pipeline.
type Metrics struct {
	EventsTotal         *prometheus.CounterVec
	FlushedEventsTotal  prometheus.Counter
	FlushBatchesTotal   prometheus.Counter
	LeadScoresTotal     prometheus.Counter
	AbandonedCartsTotal prometheus.Counter
	HotLogDrainFailures prometheus.Counter
}

// New initializes and registers the Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront_analytics",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of tracked events by type and status.",
		}, []string{"event_type", "status"}), // status: accepted, error_parse, error_store, error_rate_limited
		FlushedEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront_analytics",
			Subsystem: "flush",
			Name:      "events_total",
			Help:      "Total number of events moved from the hot log to the archive.",
		}),
		FlushBatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront_analytics",
			Subsystem: "flush",
			Name:      "batches_total",
			Help:      "Total number of archived batches written.",
		}),
		LeadScoresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront_analytics",
			Subsystem: "scoring",
			Name:      "lead_scores_total",
			Help:      "Total number of lead scores computed.",
		}),
		AbandonedCartsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront_analytics",
			Subsystem: "carts",
			Name:      "abandoned_total",
			Help:      "Total number of cart_abandon events emitted.",
		}),
		HotLogDrainFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront_analytics",
			Subsystem: "flush",
			Name:      "drain_failures_total",
			Help:      "Total number of failed flush attempts.",
		}),
	}
}
