// Package metrics exposes Prometheus collectors for queue and sweep state.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sweep outcomes used as the "outcome" label.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeSkipped   = "skipped"
	OutcomeEmpty     = "empty"
)

// Metrics holds the collectors registered on its own registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pendingEntries    prometheus.Gauge
	online            prometheus.Gauge
	syncing           prometheus.Gauge
	enqueuedTotal     prometheus.Counter
	deliveredTotal    prometheus.Counter
	deliveryFailures  *prometheus.CounterVec
	sweepsTotal       *prometheus.CounterVec
	sweepDuration     prometheus.Histogram
	deliveryDuration  prometheus.Histogram
	compactedTotal    prometheus.Counter
	compactionFailure prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		pendingEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "thermolog_pending_entries",
			Help: "Entries waiting for delivery",
		}),
		online: factory.NewGauge(prometheus.GaugeOpts{
			Name: "thermolog_online",
			Help: "Host connectivity as seen by the observer (1 = online)",
		}),
		syncing: factory.NewGauge(prometheus.GaugeOpts{
			Name: "thermolog_syncing",
			Help: "1 while a sweep is in progress",
		}),
		enqueuedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "thermolog_entries_enqueued_total",
			Help: "Entries written to the durable queue by this process",
		}),
		deliveredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "thermolog_entries_delivered_total",
			Help: "Entries acknowledged by the remote endpoint",
		}),
		deliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "thermolog_delivery_failures_total",
			Help: "Delivery attempts that aborted a sweep",
		}, []string{"kind"}),
		sweepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "thermolog_sweeps_total",
			Help: "Sweep attempts by outcome",
		}, []string{"outcome"}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "thermolog_sweep_duration_seconds",
			Help:    "Wall time of sweeps that ran",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		deliveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "thermolog_delivery_duration_seconds",
			Help:    "Latency of single delivery requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		compactedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "thermolog_entries_compacted_total",
			Help: "Synced entries removed by compaction",
		}),
		compactionFailure: factory.NewCounter(prometheus.CounterOpts{
			Name: "thermolog_compaction_failures_total",
			Help: "Compaction passes that failed and were deferred",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SetPending(count int) {
	if m == nil {
		return
	}
	m.pendingEntries.Set(float64(count))
}

func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}
	m.online.Set(boolToFloat(online))
}

func (m *Metrics) SetSyncing(syncing bool) {
	if m == nil {
		return
	}
	m.syncing.Set(boolToFloat(syncing))
}

func (m *Metrics) IncEnqueued() {
	if m == nil {
		return
	}
	m.enqueuedTotal.Inc()
}

// ObserveDelivery records one delivery attempt. kind is empty on success.
func (m *Metrics) ObserveDelivery(d time.Duration, kind string) {
	if m == nil {
		return
	}
	m.deliveryDuration.Observe(d.Seconds())
	if kind == "" {
		m.deliveredTotal.Inc()
		return
	}
	m.deliveryFailures.WithLabelValues(kind).Inc()
}

// ObserveSweep records a finished sweep. Skipped sweeps carry no duration.
func (m *Metrics) ObserveSweep(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.sweepsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		m.sweepDuration.Observe(d.Seconds())
	}
}

// ObserveCompaction records a compaction pass.
func (m *Metrics) ObserveCompaction(removed int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.compactionFailure.Inc()
		return
	}
	m.compactedTotal.Add(float64(removed))
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
