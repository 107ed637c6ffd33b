package recording

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recording_sessions_created_total",
		Help: "Total recording sessions started",
	})

	gaugeSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recording_sessions_active",
		Help: "Recording sessions currently accepting events",
	})

	metricEventsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recording_events_appended_total",
		Help: "Events stored across all sessions by kind",
	}, []string{"kind"})

	metricEventsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recording_events_deleted_total",
		Help: "Events removed by explicit delete requests",
	})

	// reason: stopped, full, other
	metricDeliverySkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recording_delivery_skipped_total",
		Help: "Capture deliveries dropped for a session",
	}, []string{"reason"})

	metricFanout = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recording_fanout_sessions",
		Help:    "Active sessions targeted by one capture",
		Buckets: prometheus.LinearBuckets(0, 1, 9),
	})
)
