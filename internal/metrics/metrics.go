// Package metrics defines the agent's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all the Prometheus metrics for the agent.
type Metrics struct {
	EventsTotal      *prometheus.CounterVec
	EventsIgnored    *prometheus.CounterVec
	LinesDropped     prometheus.Counter
	PeersByState     *prometheus.GaugeVec
	BlocksOpen       prometheus.Gauge
	BlocksSwept      prometheus.Counter
	SamplesPublished prometheus.Counter
	SamplesFiltered  prometheus.Counter
	SamplesDropped   prometheus.Counter
	PublishErrors    prometheus.Counter
	ReconcileAdded   prometheus.Counter
	ReconcileRemoved prometheus.Counter
}

// New registers the agent's metrics with reg and returns them. Pass
// prometheus.DefaultRegisterer in the binary, a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blockperf_events_total",
			Help: "Trace events processed, by event kind",
		}, []string{"kind"}),
		EventsIgnored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blockperf_events_ignored_total",
			Help: "Trace events skipped, by reason (unknown, malformed)",
		}, []string{"reason"}),
		LinesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "blockperf_log_lines_dropped_total",
			Help: "Log lines that could not be decoded as trace events",
		}),
		PeersByState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "blockperf_peers",
			Help: "Tracked peers, by connectivity state",
		}, []string{"state"}),
		BlocksOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "blockperf_blocks_open",
			Help: "Block records awaiting adoption",
		}),
		BlocksSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "blockperf_blocks_swept_total",
			Help: "Stale block records dropped without emitting a sample",
		}),
		SamplesPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "blockperf_samples_published_total",
			Help: "Block samples accepted by the backend",
		}),
		SamplesFiltered: factory.NewCounter(prometheus.CounterOpts{
			Name: "blockperf_samples_filtered_total",
			Help: "Block samples excluded by the sample filter expression",
		}),
		SamplesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "blockperf_samples_dropped_total",
			Help: "Block samples dropped because the publish queue was full",
		}),
		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "blockperf_publish_errors_total",
			Help: "Failed sample submissions to the backend",
		}),
		ReconcileAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "blockperf_reconcile_added_total",
			Help: "Peers inserted by socket reconciliation",
		}),
		ReconcileRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "blockperf_reconcile_removed_total",
			Help: "Peers removed by socket reconciliation",
		}),
	}
}
