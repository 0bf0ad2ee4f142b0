// Package metrics exposes the process-wide Prometheus registry and the
// collectors the stores and server report into.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store label values used across collectors.
const (
	StorePositions = "positions"
	StoreTraffic   = "traffic"
	StoreRoutes    = "routes"
)

// Poll result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultCanceled = "canceled"
)

type Registry struct {
	reg *prometheus.Registry

	// Polls counts completed poll cycles per store and result.
	Polls *prometheus.CounterVec

	// Records tracks the current cache size per store.
	Records *prometheus.GaugeVec

	// Notifications counts snapshot commits that actually changed state.
	Notifications *prometheus.CounterVec

	RouteBatches    prometheus.Counter
	RoutesResolved  prometheus.Counter
	RouteQueueDepth prometheus.Gauge

	StreamClients prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	polls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railfeed_polls_total",
		Help: "Completed poll cycles by store and result.",
	}, []string{"store", "result"})
	records := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "railfeed_records",
		Help: "Current number of cached records by store.",
	}, []string{"store"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "railfeed_notifications_total",
		Help: "Snapshot publications that changed state, by store.",
	}, []string{"store"})
	routeBatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "railfeed_route_batches_total",
		Help: "Route lookup batches sent upstream.",
	})
	routesResolved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "railfeed_routes_resolved_total",
		Help: "Route lookups resolved, including terminal misses.",
	})
	routeQueueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "railfeed_route_queue_depth",
		Help: "Route lookups waiting for a batch.",
	})
	streamClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "railfeed_stream_clients",
		Help: "Currently connected SSE clients.",
	})

	r.MustRegister(polls, records, notifications, routeBatches, routesResolved, routeQueueDepth, streamClients)
	return &Registry{
		reg:             r,
		Polls:           polls,
		Records:         records,
		Notifications:   notifications,
		RouteBatches:    routeBatches,
		RoutesResolved:  routesResolved,
		RouteQueueDepth: routeQueueDepth,
		StreamClients:   streamClients,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
