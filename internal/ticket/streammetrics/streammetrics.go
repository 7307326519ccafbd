package streammetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stream_subscribers",
		Help: "Subscribers currently registered with the hub",
	})
	AttachTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_attach_total",
		Help: "Sessions that delivered a snapshot and joined the hub",
	})
	DetachTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_detach_total",
		Help: "Sessions detached, partitioned by reason",
	}, []string{"reason"}) // client_closed/write_failed/overflow/shutdown/attach_failed

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_events_published_total",
		Help: "Events passed to Publish",
	}, []string{"type"})
	EventsQueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_events_queued_total",
		Help: "Per-subscriber enqueues (one publish to N subscribers counts N)",
	})
	DroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_subscribers_dropped_total",
		Help: "Subscribers removed by the hub during publish",
	}, []string{"why"})

	HeartbeatTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_heartbeat_total",
		Help: "Heartbeat events queued",
	})
	BytesOutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_bytes_out_total",
		Help: "Bytes written to stream transports",
	})
	WriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_write_errors_total",
		Help: "Transport write errors",
	})
	WriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stream_write_duration_seconds",
		Help:    "Duration of a single event write + flush",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms -> ~4s
	})
	SnapshotSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stream_snapshot_tickets",
		Help:    "Tickets per snapshot sent on attach",
		Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000},
	})
)

func OnAttach(snapshotLen int) {
	AttachTotal.Inc()
	SnapshotSize.Observe(float64(snapshotLen))
}

func OnDetach(reason string) {
	DetachTotal.WithLabelValues(reason).Inc()
}

func OnPublish(eventType string, queued int) {
	EventsPublishedTotal.WithLabelValues(eventType).Inc()
	EventsQueuedTotal.Add(float64(queued))
}

func OnDrop(why string) {
	DroppedTotal.WithLabelValues(why).Inc()
}

func ObserveWrite(bytes int, dur time.Duration, err error) {
	if bytes > 0 {
		BytesOutTotal.Add(float64(bytes))
	}
	WriteDuration.Observe(dur.Seconds())
	if err != nil {
		WriteErrorsTotal.Inc()
	}
}
