package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "metalroute"

// Metrics implements every hook interface on top of Prometheus collectors
// registered with one registry.
type Metrics struct {
	reg prometheus.Gatherer

	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	routes       *prometheus.CounterVec
	routeLatency *prometheus.HistogramVec
	steps        prometheus.Histogram
	vias         prometheus.Counter
	wirelength   prometheus.Counter
	overflow     prometheus.Gauge

	cache *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

var (
	_ RouterHooks = (*Metrics)(nil)
	_ CacheHooks  = (*Metrics)(nil)
	_ HTTPHooks   = (*Metrics)(nil)
)

// NewMetrics registers the collectors with reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "runs_total",
			Help:      "Routing runs by outcome",
		}, []string{"status"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "run_duration_seconds",
			Help:      "Routing run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		routes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "requests_total",
			Help:      "Route requests by search status",
		}, []string{"status"}),
		routeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "request_duration_seconds",
			Help:      "Route request search latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"status"}),
		steps: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "search_steps",
			Help:      "Wavefront steps per request",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		}),
		vias: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "vias_total",
			Help:      "Contacts placed by routed requests",
		}),
		wirelength: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "wirelength_total",
			Help:      "Wirelength placed by routed requests",
		}),
		overflow: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "global",
			Name:      "overflow",
			Help:      "Track overflow of the last global routing plan",
		}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Cache operations by key type and result",
		}, []string{"key_type", "op"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "responses_total",
			Help:      "HTTP responses by path and status code",
		}, []string{"method", "path", "code"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Handler serves the registered metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) OnRunStart(context.Context, string, int) {}

func (m *Metrics) OnRunComplete(_ context.Context, _ string, routed, failed int, d time.Duration, err error) {
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case failed > 0:
		status = "partial"
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
}

func (m *Metrics) OnRouteComplete(_ context.Context, status string, steps, vias int, wirelength float64, d time.Duration) {
	m.routes.WithLabelValues(status).Inc()
	m.routeLatency.WithLabelValues(status).Observe(d.Seconds())
	m.steps.Observe(float64(steps))
	m.vias.Add(float64(vias))
	m.wirelength.Add(wirelength)
}

func (m *Metrics) OnGlobalRoute(_ context.Context, _ int, overflow float64, _ time.Duration) {
	m.overflow.Set(overflow)
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cache.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cache.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, _ int) {
	m.cache.WithLabelValues(keyType, "set").Inc()
}

func (m *Metrics) OnRequest(context.Context, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, method, path string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	m.httpLatency.WithLabelValues(method, path).Observe(d.Seconds())
}
