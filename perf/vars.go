package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency     = metric.NewHistogram("1m1s")
	RebuildLatency      = metric.NewHistogram("1m1s")
	RouteCount          = metric.NewGauge("1m1s")
	HeartbeatsPerSecond = metric.NewCounter("10s1s")
	SweepsPerSecond     = metric.NewCounter("1m1s")
	EventsDropped       = metric.NewCounter("1m1s")
)

func init() {
	expvar.Publish("meshwatch:DispatchLatency (µs)", DispatchLatency)
	expvar.Publish("meshwatch:RebuildLatency (µs)", RebuildLatency)
	expvar.Publish("meshwatch:Routes", RouteCount)
	expvar.Publish("meshwatch:Heartbeats/s", HeartbeatsPerSecond)
	expvar.Publish("meshwatch:Sweeps/s", SweepsPerSecond)
	expvar.Publish("meshwatch:EventsDropped/s", EventsDropped)
}

// Handler serves the live histogram dashboard for the published vars
func Handler() http.Handler {
	return metric.Handler(metric.Exposed)
}
