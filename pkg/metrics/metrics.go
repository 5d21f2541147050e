// Package metrics exposes Prometheus metrics for the host: request traffic per
// route pattern and the registration activity of plugins, routes and decorations.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tskau/routekit/pkg/common"
	"github.com/tskau/routekit/pkg/middleware"
)

// Config controls metric naming.
type Config struct {
	Namespace string `yaml:"namespace" envconfig:"NAMESPACE"`
	Subsystem string `yaml:"subsystem" envconfig:"SUBSYSTEM"`
	// Buckets for the request latency histogram. Defaults to prometheus.DefBuckets.
	Buckets []float64 `yaml:"buckets" envconfig:"BUCKETS"`
}

// Collector owns the host's Prometheus metrics.
type Collector struct {
	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	responseBytes  *prometheus.CounterVec
	routes         *prometheus.CounterVec
	plugins        *prometheus.CounterVec
	pluginDuration *prometheus.HistogramVec
	decorations    prometheus.Gauge
}

// NewCollector creates the metrics and registers them with reg. Metrics that
// are already registered with an identical description are reused, so several
// hosts may share one registry.
func NewCollector(reg prometheus.Registerer, cfg Config) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "http_requests_total",
			Help: "HTTP requests served, by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency, by method and route pattern.",
			Buckets: buckets,
		}, []string{"method", "route"}),
		responseBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "http_response_bytes_total",
			Help: "Response body bytes written, by method and route pattern.",
		}, []string{"method", "route"}),
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "routes_registered_total",
			Help: "Routes registered with the host, by method.",
		}, []string{"method"}),
		plugins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "plugin_registrations_total",
			Help: "Plugin registrations, by plugin name and result.",
		}, []string{"plugin", "result"}),
		pluginDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "plugin_registration_duration_seconds",
			Help: "Time spent running plugins, by plugin name.",
		}, []string{"plugin"}),
		decorations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name: "decorations",
			Help: "Named values attached to the hosts sharing this registry.",
		}),
	}

	var err error
	if c.requests, err = register(reg, c.requests); err != nil {
		return nil, err
	}
	if c.latency, err = register(reg, c.latency); err != nil {
		return nil, err
	}
	if c.responseBytes, err = register(reg, c.responseBytes); err != nil {
		return nil, err
	}
	if c.routes, err = register(reg, c.routes); err != nil {
		return nil, err
	}
	if c.plugins, err = register(reg, c.plugins); err != nil {
		return nil, err
	}
	if c.pluginDuration, err = register(reg, c.pluginDuration); err != nil {
		return nil, err
	}
	if c.decorations, err = register(reg, c.decorations); err != nil {
		return nil, err
	}
	return c, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Middleware records traffic for one route pattern. The pattern, not the raw
// path, is used as the label so parameters do not explode cardinality.
func (c *Collector) Middleware(route string) common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := middleware.NewStatusRecorder(w)

			next.ServeHTTP(rw, r)

			c.requests.WithLabelValues(r.Method, route, strconv.Itoa(rw.Status())).Inc()
			c.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			c.responseBytes.WithLabelValues(r.Method, route).Add(float64(rw.BytesWritten()))
		})
	}
}

// ObserveRoute counts a route registration.
func (c *Collector) ObserveRoute(method string) {
	c.routes.WithLabelValues(method).Inc()
}

// ObservePlugin records a plugin run and its outcome.
func (c *Collector) ObservePlugin(name string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.plugins.WithLabelValues(name, result).Inc()
	c.pluginDuration.WithLabelValues(name).Observe(d.Seconds())
}

// AddDecorations records n newly attached decorations. Hosts sharing a
// registry add to the same gauge, so it reports their total.
func (c *Collector) AddDecorations(n int) {
	c.decorations.Add(float64(n))
}

// Handler exposes the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
