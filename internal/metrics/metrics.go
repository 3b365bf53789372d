// Package metrics exposes prometheus instrumentation for the alert pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sentiment-alerts/internal/models"
)

const namespace = "sentiment_alerts"

// Metrics holds the collectors on a private registry. All methods are safe
// on a nil receiver so callers can run uninstrumented.
type Metrics struct {
	registry *prometheus.Registry

	checks        *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	errors        *prometheus.CounterVec
	skippedCycles prometheus.Counter
	fetchDuration prometheus.Histogram
	cycleDuration prometheus.Histogram
	lastSuccess   prometheus.Gauge
	breakerState  *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		checks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticker_checks_total",
				Help:      "Per-ticker check outcomes",
			},
			[]string{"outcome"},
		),
		alerts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_total",
				Help:      "Alerts fired by direction, channel and delivery status",
			},
			[]string{"direction", "channel", "status"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Pipeline errors by kind",
			},
			[]string{"kind"},
		),
		skippedCycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_skipped_total",
			Help:      "Triggers skipped because a cycle was already in flight",
		}),
		fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Sentiment fetch latency",
			Buckets:   prometheus.DefBuckets,
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Check cycle duration",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_cycle_timestamp_seconds",
			Help:      "Unix time the last cycle completed",
		}),
		breakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
	}
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(s models.CycleSummary) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(s.Duration().Seconds())
	m.lastSuccess.Set(float64(s.FinishedAt.Unix()))
	for _, r := range s.Results {
		m.checks.WithLabelValues(string(r.Outcome)).Inc()
	}
}

// ObserveFetch records one upstream call.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(d.Seconds())
}

// RecordAlert counts a fired alert.
func (m *Metrics) RecordAlert(dir models.Direction, result models.ChannelResult) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(string(dir), result.Channel, string(result.Status)).Inc()
}

// RecordError counts an error by its taxonomy label.
func (m *Metrics) RecordError(kind string) {
	if m == nil || kind == "" {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}

// RecordSkippedCycle counts a trigger dropped by the in-flight guard.
func (m *Metrics) RecordSkippedCycle() {
	if m == nil {
		return
	}
	m.skippedCycles.Inc()
}

// SetBreakerState publishes a circuit state.
func (m *Metrics) SetBreakerState(name, state string) {
	if m == nil {
		return
	}
	var v float64
	switch state {
	case "HALF_OPEN":
		v = 1
	case "OPEN":
		v = 2
	}
	m.breakerState.WithLabelValues(name).Set(v)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
