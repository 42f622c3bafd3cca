package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeStructured = "structured"
	OutcomeFallback   = "fallback"
	OutcomeTimeout    = "timeout"
	OutcomeError      = "error"
)

// Collector holds the Prometheus metrics of the service.
type Collector struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec

	routineSavesTotal  *prometheus.CounterVec
	rollbacksTotal     *prometheus.CounterVec
	sweptRoutinesTotal prometheus.Counter

	cacheOperations *prometheus.CounterVec
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		gatherer: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_generations_total",
				Help: "Model generations by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		generationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ai_generation_duration_seconds",
				Help:    "Model call latency in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
			},
			[]string{"kind"},
		),
		routineSavesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routine_saves_total",
				Help: "Routine creation attempts by outcome",
			},
			[]string{"outcome"},
		),
		rollbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routine_rollbacks_total",
				Help: "Compensating rollbacks by failed stage and result",
			},
			[]string{"stage", "result"},
		),
		sweptRoutinesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "routine_sweep_deleted_total",
				Help: "Incomplete routines removed by the sweeper",
			},
		),
		cacheOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_operations_total",
				Help: "Catalog cache lookups by result",
			},
			[]string{"operation", "result"},
		),
	}
}

// HTTPMiddleware records request count and latency per route.
func (m *Collector) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (m *Collector) Generation(kind, outcome string, duration time.Duration) {
	m.generationsTotal.WithLabelValues(kind, outcome).Inc()
	m.generationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *Collector) RoutineSave(outcome string) {
	m.routineSavesTotal.WithLabelValues(outcome).Inc()
}

// Rollback records a compensating rollback; ok is false when the rollback itself failed.
func (m *Collector) Rollback(stage string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.rollbacksTotal.WithLabelValues(stage, result).Inc()
}

func (m *Collector) RoutinesSwept(n int) {
	m.sweptRoutinesTotal.Add(float64(n))
}

func (m *Collector) CacheOperation(operation, result string) {
	m.cacheOperations.WithLabelValues(operation, result).Inc()
}

// Handler exposes the registry for scraping.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
