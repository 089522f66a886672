// Package observability groups the Prometheus instruments exposed on the
// gateway's /metrics endpoint.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Turns        *prometheus.CounterVec
	RelayLatency prometheus.Histogram
	Flushes      *prometheus.CounterVec
	FlushBytes   prometheus.Histogram
	QueueDepth   prometheus.Gauge
	QueueDropped prometheus.Counter
	ActiveUsers  prometheus.Gauge
}

// NewMetrics registers all instruments under the given namespace on the
// default registry and returns them.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Turns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Handled conversation turns by outcome.",
		}, []string{"outcome"}),
		RelayLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_latency_seconds",
			Help:      "Completion provider round-trip latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		Flushes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Snapshot flushes to the durable backend by result.",
		}, []string{"result"}),
		FlushBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_bytes",
			Help:      "Size of persisted snapshot documents in bytes.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flush_queue_depth",
			Help:      "Snapshots waiting in the write-behind queue.",
		}),
		QueueDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_queue_dropped_total",
			Help:      "Stale snapshots dropped on queue overflow.",
		}),
		ActiveUsers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_users",
			Help:      "Users with at least one stored conversation turn.",
		}),
	}
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
