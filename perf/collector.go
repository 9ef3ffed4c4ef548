package perf

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics exported by the engine. All methods
// are safe to call on a nil Collector, so the engine can run without one.
type Collector struct {
	gatherer prometheus.Gatherer

	Heartbeats      *prometheus.CounterVec
	StatusChanges   *prometheus.CounterVec
	AlertsRaised    *prometheus.CounterVec
	AlertsResolved  prometheus.Counter
	RouteRebuilds   prometheus.Counter
	RebuildDuration prometheus.Histogram

	Nodes        *prometheus.GaugeVec
	Routes       prometheus.Gauge
	ActiveAlerts prometheus.Gauge
}

// NewCollector registers the mesh metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		Heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshwatch_heartbeats_total",
			Help: "Heartbeat frames handled, labeled by outcome.",
		}, []string{"outcome"}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshwatch_status_changes_total",
			Help: "Node status transitions, labeled by previous and current status.",
		}, []string{"from", "to"}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshwatch_alerts_raised_total",
			Help: "Alerts raised, labeled by type and severity.",
		}, []string{"type", "severity"}),
		AlertsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshwatch_alerts_resolved_total",
			Help: "Alerts resolved by an operator or the auto-resolve policy.",
		}),
		RouteRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshwatch_route_rebuilds_total",
			Help: "Full route table rebuilds.",
		}),
		RebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meshwatch_route_rebuild_duration_seconds",
			Help:    "Route table rebuild latency in seconds.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		Nodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meshwatch_nodes",
			Help: "Registered nodes, labeled by status.",
		}, []string{"status"}),
		Routes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshwatch_routes",
			Help: "Routes in the current route table.",
		}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshwatch_active_alerts",
			Help: "Alerts that have not been resolved.",
		}),
	}

	collectors := []prometheus.Collector{
		c.Heartbeats, c.StatusChanges, c.AlertsRaised, c.AlertsResolved,
		c.RouteRebuilds, c.RebuildDuration, c.Nodes, c.Routes, c.ActiveAlerts,
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				return nil, fmt.Errorf("meshwatch metrics already registered: %w", err)
			}
			return nil, err
		}
	}
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) Heartbeat(outcome string) {
	if c == nil {
		return
	}
	c.Heartbeats.WithLabelValues(outcome).Inc()
}

func (c *Collector) StatusChange(from, to string) {
	if c == nil {
		return
	}
	c.StatusChanges.WithLabelValues(from, to).Inc()
}

func (c *Collector) AlertRaised(typ, severity string) {
	if c == nil {
		return
	}
	c.AlertsRaised.WithLabelValues(typ, severity).Inc()
}

func (c *Collector) AlertResolved() {
	if c == nil {
		return
	}
	c.AlertsResolved.Inc()
}

// Rebuild records one route table rebuild and the resulting table size.
func (c *Collector) Rebuild(seconds float64, routes int) {
	if c == nil {
		return
	}
	c.RouteRebuilds.Inc()
	c.RebuildDuration.Observe(seconds)
	c.Routes.Set(float64(routes))
}

// SetCounts refreshes the point-in-time gauges.
func (c *Collector) SetCounts(byStatus map[string]int, activeAlerts int) {
	if c == nil {
		return
	}
	for status, n := range byStatus {
		c.Nodes.WithLabelValues(status).Set(float64(n))
	}
	c.ActiveAlerts.Set(float64(activeAlerts))
}
