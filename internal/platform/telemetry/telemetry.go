// Package telemetry exposes Prometheus metrics for the API: HTTP request
// counters and latency histograms, outbound integration outcomes, and a few
// domain counters. Each Collector owns its registry so tests can create as
// many as they like.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Integration call outcomes.
const (
	OutcomeLive     = "live"
	OutcomeFallback = "fallback"
	OutcomeCached   = "cached"
)

// Config holds telemetry settings.
type Config struct {
	Namespace      string
	IncludeRuntime bool
}

func (c *Config) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "healthhub"
	}
}

// Collector holds all Prometheus metrics for the application.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	IntegrationCalls *prometheus.CounterVec

	AnomaliesDetected prometheus.Counter
	RiskPathQueries   prometheus.Counter
	SymptomChecks     prometheus.Counter
}

// NewCollector creates a collector with its own registry.
func NewCollector(cfg Config) *Collector {
	cfg.applyDefaults()
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		IntegrationCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "integration_calls_total",
			Help:      "Outbound integration calls by outcome",
		}, []string{"integration", "outcome"}),
		AnomaliesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "anomalies_detected_total",
			Help:      "Total number of anomalous readings flagged",
		}),
		RiskPathQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "risk_path_queries_total",
			Help:      "Total number of health graph risk path queries",
		}),
		SymptomChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "symptom_checks_total",
			Help:      "Total number of symptom checker runs",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.IntegrationCalls,
		c.AnomaliesDetected,
		c.RiskPathQueries,
		c.SymptomChecks,
	)
	if cfg.IncludeRuntime {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// IntegrationCall records one outbound call outcome. Safe on a nil collector.
func (c *Collector) IntegrationCall(integration, outcome string) {
	if c == nil {
		return
	}
	c.IntegrationCalls.WithLabelValues(integration, outcome).Inc()
}

// AddAnomalies adds n to the anomaly counter. Safe on a nil collector.
func (c *Collector) AddAnomalies(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.AnomaliesDetected.Add(float64(n))
}

// RiskPathQuery counts a risk path lookup. Safe on a nil collector.
func (c *Collector) RiskPathQuery() {
	if c == nil {
		return
	}
	c.RiskPathQueries.Inc()
}

// SymptomCheck counts a symptom checker run. Safe on a nil collector.
func (c *Collector) SymptomCheck() {
	if c == nil {
		return
	}
	c.SymptomChecks.Inc()
}

// Middleware records request count and latency keyed by the matched route
// pattern, so path parameters do not explode label cardinality.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			start := time.Now()
			err := next(ec)

			status := ec.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < 400 {
					status = 500
				}
			}
			route := ec.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ec.Request().Method

			c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			c.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}
