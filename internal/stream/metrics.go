package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gaugeSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stream_subscribers",
		Help: "Live event stream subscriptions",
	})
	metricFramesQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_frames_queued_total",
		Help: "Events queued to stream subscribers",
	})
	metricFramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_frames_dropped_total",
		Help: "Events dropped because a subscriber buffer was full",
	})
)
