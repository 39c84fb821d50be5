package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the replicator's Prometheus collectors on a private registry.
type Metrics struct {
	registry           *prometheus.Registry
	applied            *prometheus.CounterVec
	dropped            *prometheus.CounterVec
	orderingRetries    *prometheus.CounterVec
	sideEffectFailures *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replica_events_applied_total",
			Help: "Change events processed by the replica applier, by outcome.",
		}, []string{"table", "operation", "outcome"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replica_events_dropped_total",
			Help: "Change events dropped without reaching the read store.",
		}, []string{"table", "reason"}),
		orderingRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replica_ordering_retries_total",
			Help: "Insert retries caused by a missing parent row.",
		}, []string{"table"}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replica_side_effect_failures_total",
			Help: "Best-effort side effects that failed after a committed apply.",
		}, []string{"kind"}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.applied,
		m.dropped,
		m.orderingRetries,
		m.sideEffectFailures,
	)
	return m
}

func (m *Metrics) ObserveApply(table string, operation string, outcome string) {
	m.applied.WithLabelValues(table, operation, outcome).Inc()
}

func (m *Metrics) ObserveDrop(table string, reason string) {
	m.dropped.WithLabelValues(table, reason).Inc()
}

func (m *Metrics) ObserveRetry(table string) {
	m.orderingRetries.WithLabelValues(table).Inc()
}

func (m *Metrics) ObserveSideEffectFailure(kind string) {
	m.sideEffectFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
