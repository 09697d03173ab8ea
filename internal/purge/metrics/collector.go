package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// Label values
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Collector owns the bridge's Prometheus registry.
// All methods are safe on a nil *Collector so components can run without metrics.
type Collector struct {
	registry    *prometheus.Registry
	httpHandler fasthttp.RequestHandler
	logger      *zap.Logger

	eventsTotal        *prometheus.CounterVec
	purgeRequestsTotal *prometheus.CounterVec
	purgeDuration      *prometheus.HistogramVec
	tasksTotal         *prometheus.CounterVec
	queueDepth         prometheus.Gauge
}

func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if namespace == "" {
		namespace = "purgebridge"
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}

	c.eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Content events handled, by kind and selected action",
		},
		[]string{"kind", "action"},
	)

	c.purgeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_requests_total",
			Help:      "Per-zone purge API requests",
		},
		[]string{"zone", "action", "status"},
	)

	c.purgeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "purge_request_duration_seconds",
			Help:      "Duration of per-zone purge API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	c.tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Deferred purge tasks by lifecycle status",
		},
		[]string{"status"},
	)

	c.queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Pending deferred purge tasks",
		},
	)

	c.registry.MustRegister(c.eventsTotal, c.purgeRequestsTotal, c.purgeDuration, c.tasksTotal, c.queueDepth)

	handler := promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
	c.httpHandler = fasthttpadaptor.NewFastHTTPHandler(handler)

	logger.Info("Prometheus metrics initialized", zap.String("namespace", namespace))

	return c
}

// RecordEvent counts a handled content event
func (c *Collector) RecordEvent(kind, action string) {
	if c == nil {
		return
	}
	c.eventsTotal.WithLabelValues(kind, action).Inc()
}

// RecordPurgeRequest counts one zone request and observes its duration
func (c *Collector) RecordPurgeRequest(zoneID, action string, success bool, duration time.Duration) {
	if c == nil {
		return
	}
	status := StatusFailure
	if success {
		status = StatusSuccess
	}
	c.purgeRequestsTotal.WithLabelValues(zoneID, action, status).Inc()
	c.purgeDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordTask counts a task lifecycle transition (enqueued, deduplicated, rejected, executed, skipped, failed)
func (c *Collector) RecordTask(status string) {
	if c == nil {
		return
	}
	c.tasksTotal.WithLabelValues(status).Inc()
}

// SetQueueDepth sets the pending task gauge
func (c *Collector) SetQueueDepth(depth int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(depth))
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	c.httpHandler(ctx)
}
