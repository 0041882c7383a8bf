package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "budgetsync_events_applied_total",
		Help: "Total number of accepted mutation events, labelled by event type.",
	}, []string{"event_type"})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "budgetsync_events_rejected_total",
		Help: "Total number of rejected client events, labelled by event type.",
	}, []string{"event_type"})

	VersionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "budgetsync_version_conflicts_total",
		Help: "Total number of optimistic concurrency conflicts on aggregate writes.",
	})

	SyncEventsServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "budgetsync_sync_events_served_total",
		Help: "Total number of events handed out through the pull sync feed.",
	})

	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "budgetsync_batch_size_events",
		Help:    "Number of events per uploaded offline batch.",
		Buckets: []float64{1, 2, 5, 10, 15, 20, 25},
	})
)
