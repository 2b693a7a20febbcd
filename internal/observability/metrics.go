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

// Metrics stores Prometheus collectors used by API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	batchesCreatedTotal    prometheus.Counter
	requestsAssignedTotal  prometheus.Counter
	archivesSentTotal      prometheus.Counter
	archiveSendFailedTotal prometheus.Counter
	archiveSendDuration    prometheus.Histogram

	responsesAppliedTotal       *prometheus.CounterVec
	protocolViolationsTotal     prometheus.Counter
	responseFilesClaimedTotal   prometheus.Counter
	responseFilesProcessedTotal prometheus.Counter

	workerInflight *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "print_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "print_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		batchesCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "print_engine",
				Name:      "batches_created_total",
				Help:      "Total number of print batches created.",
			},
		),
		requestsAssignedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "print_engine",
				Name:      "requests_assigned_total",
				Help:      "Total number of print requests assigned to a batch.",
			},
		),
		archivesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "print_engine",
				Name:      "archives_sent_total",
				Help:      "Total number of print file archives delivered to the provider.",
			},
		),
		archiveSendFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "print_engine",
				Name:      "archive_send_failed_total",
				Help:      "Total number of print file archive deliveries that failed.",
			},
		),
		archiveSendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "print_engine",
				Name:      "archive_send_duration_seconds",
				Help:      "Archive assembly and delivery duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		responsesAppliedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "print_engine",
				Name:      "responses_applied_total",
				Help:      "Total number of provider response entries applied by kind.",
			},
			[]string{"kind"},
		),
		protocolViolationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "print_engine",
				Name:      "protocol_violations_total",
				Help:      "Total number of provider responses with an unmappable step and outcome pair.",
			},
		),
		responseFilesClaimedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "print_engine",
				Name:      "response_files_claimed_total",
				Help:      "Total number of provider response files claimed for processing.",
			},
		),
		responseFilesProcessedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "print_engine",
				Name:      "response_files_processed_total",
				Help:      "Total number of provider response files fully applied and removed.",
			},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "print_engine",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight worker deliveries grouped by queue.",
			},
			[]string{"queue"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.batchesCreatedTotal,
		m.requestsAssignedTotal,
		m.archivesSentTotal,
		m.archiveSendFailedTotal,
		m.archiveSendDuration,
		m.responsesAppliedTotal,
		m.protocolViolationsTotal,
		m.responseFilesClaimedTotal,
		m.responseFilesProcessedTotal,
		m.workerInflight,
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

func (m *Metrics) IncBatchCreated() {
	if m == nil {
		return
	}
	m.batchesCreatedTotal.Inc()
}

func (m *Metrics) AddRequestsAssigned(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.requestsAssignedTotal.Add(float64(count))
}

func (m *Metrics) IncArchiveSent() {
	if m == nil {
		return
	}
	m.archivesSentTotal.Inc()
}

func (m *Metrics) IncArchiveSendFailed() {
	if m == nil {
		return
	}
	m.archiveSendFailedTotal.Inc()
}

func (m *Metrics) ObserveArchiveSendDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.archiveSendDuration.Observe(seconds)
}

func (m *Metrics) AddResponsesApplied(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.responsesAppliedTotal.WithLabelValues(normalizeLabel(kind)).Add(float64(count))
}

func (m *Metrics) IncProtocolViolation() {
	if m == nil {
		return
	}
	m.protocolViolationsTotal.Inc()
}

func (m *Metrics) IncResponseFileClaimed() {
	if m == nil {
		return
	}
	m.responseFilesClaimedTotal.Inc()
}

func (m *Metrics) IncResponseFileProcessed() {
	if m == nil {
		return
	}
	m.responseFilesProcessedTotal.Inc()
}

func (m *Metrics) IncWorkerInFlight(queue string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(queue)).Inc()
}

func (m *Metrics) DecWorkerInFlight(queue string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(queue)).Dec()
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

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
