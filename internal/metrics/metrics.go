// Package metrics exposes Prometheus collectors for the tick loop, the
// monitor loop, and the scoring backend. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ticks           prometheus.Counter
	tickDuration    prometheus.Histogram
	agents          prometheus.Gauge
	dangerZones     prometheus.Gauge
	monitorCycles   prometheus.Counter
	discardedCycles prometheus.Counter
	scoringFailures *prometheus.CounterVec
	scoringLatency  prometheus.Histogram
	alerts          *prometheus.CounterVec
	retainedAlerts  prometheus.Gauge
	sinkFailures    *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crowdwatch_ticks_total",
			Help: "Simulation ticks processed.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crowdwatch_tick_duration_seconds",
			Help:    "Wall time spent advancing the population by one tick.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10),
		}),
		agents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crowdwatch_agents",
			Help: "Agents in the current population.",
		}),
		dangerZones: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crowdwatch_danger_zones",
			Help: "Zones currently flagged as danger.",
		}),
		monitorCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crowdwatch_monitor_cycles_total",
			Help: "Completed risk monitor firings.",
		}),
		discardedCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crowdwatch_monitor_discarded_cycles_total",
			Help: "Monitor firings whose results arrived after a stop.",
		}),
		scoringFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdwatch_scoring_failures_total",
			Help: "Per-zone scoring calls that failed.",
		}, []string{"zone"}),
		scoringLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crowdwatch_scoring_latency_seconds",
			Help:    "Latency of a single per-zone scoring call.",
			Buckets: prometheus.DefBuckets,
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdwatch_alerts_total",
			Help: "Alerts emitted, by severity.",
		}, []string{"severity"}),
		retainedAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crowdwatch_retained_alerts",
			Help: "Alerts in the retention window.",
		}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdwatch_alert_sink_failures_total",
			Help: "Alert sink writes that failed.",
		}, []string{"sink"}),
	}
	m.registry.MustRegister(
		m.ticks, m.tickDuration, m.agents, m.dangerZones,
		m.monitorCycles, m.discardedCycles, m.scoringFailures, m.scoringLatency,
		m.alerts, m.retainedAlerts, m.sinkFailures,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry (for tests and custom exporters).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveTick(d time.Duration, agents, dangerZones int) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
	m.agents.Set(float64(agents))
	m.dangerZones.Set(float64(dangerZones))
}

func (m *Metrics) ObserveCycle(retained int) {
	if m == nil {
		return
	}
	m.monitorCycles.Inc()
	m.retainedAlerts.Set(float64(retained))
}

func (m *Metrics) DiscardedCycle() {
	if m == nil {
		return
	}
	m.discardedCycles.Inc()
}

func (m *Metrics) ScoringFailure(zone string) {
	if m == nil {
		return
	}
	m.scoringFailures.WithLabelValues(zone).Inc()
}

func (m *Metrics) ObserveScoring(d time.Duration) {
	if m == nil {
		return
	}
	m.scoringLatency.Observe(d.Seconds())
}

func (m *Metrics) Alert(severity string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(severity).Inc()
}

func (m *Metrics) SinkFailure(sink string) {
	if m == nil {
		return
	}
	m.sinkFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) ResetRetained() {
	if m == nil {
		return
	}
	m.retainedAlerts.Set(0)
}
