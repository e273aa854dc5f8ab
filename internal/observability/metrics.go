package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and the delivery
// worker loop.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	issuesPublishedTotal    prometheus.Counter
	idempotentReplaysTotal  prometheus.Counter
	deliveriesSentTotal     prometheus.Counter
	deliveriesFailedTotal   *prometheus.CounterVec
	deliverySendDuration    prometheus.Histogram
	queuePollsTotal         *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "newzletter",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "newzletter",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		issuesPublishedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "newzletter",
				Name:      "issues_published_total",
				Help:      "Total number of newsletter issues published.",
			},
		),
		idempotentReplaysTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "newzletter",
				Name:      "idempotent_replays_total",
				Help:      "Total number of publish requests answered from the idempotency store.",
			},
		),
		deliveriesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "newzletter",
				Name:      "deliveries_sent_total",
				Help:      "Total number of issue deliveries sent successfully.",
			},
		),
		deliveriesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "newzletter",
				Name:      "deliveries_failed_total",
				Help:      "Total number of issue deliveries that were consumed without a successful send.",
			},
			[]string{"reason"},
		),
		deliverySendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "newzletter",
				Name:      "delivery_send_duration_seconds",
				Help:      "Outbound email send duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		queuePollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "newzletter",
				Name:      "delivery_queue_polls_total",
				Help:      "Total number of delivery queue polls by outcome.",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.issuesPublishedTotal,
		m.idempotentReplaysTotal,
		m.deliveriesSentTotal,
		m.deliveriesFailedTotal,
		m.deliverySendDuration,
		m.queuePollsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncIssuePublished() {
	if m == nil {
		return
	}
	m.issuesPublishedTotal.Inc()
}

func (m *Metrics) IncIdempotentReplay() {
	if m == nil {
		return
	}
	m.idempotentReplaysTotal.Inc()
}

func (m *Metrics) IncDeliverySent() {
	if m == nil {
		return
	}
	m.deliveriesSentTotal.Inc()
}

func (m *Metrics) IncDeliveryFailed(reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.deliveriesFailedTotal.WithLabelValues(reasonLabel).Inc()
}

func (m *Metrics) ObserveDeliverySendDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.deliverySendDuration.Observe(seconds)
}

func (m *Metrics) IncQueuePoll(outcome string) {
	if m == nil {
		return
	}
	outcomeLabel := strings.TrimSpace(strings.ToLower(outcome))
	if outcomeLabel == "" {
		outcomeLabel = "unknown"
	}
	m.queuePollsTotal.WithLabelValues(outcomeLabel).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}
