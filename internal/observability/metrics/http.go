package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

type HTTPServerMetrics struct {
	*ResilienceMetrics

	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal          *prometheus.CounterVec
	queryEscalatedTotal *prometheus.CounterVec
	queryDuration       *prometheus.HistogramVec
	querySources        *prometheus.HistogramVec
	classificationTotal *prometheus.CounterVec
	searchNoResults     *prometheus.CounterVec
	rejectedTotal       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "router",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "router",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "router",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "router",
			Subsystem: "query",
			Name:      "total",
			Help:      "Total answered queries by domain, agent and outcome.",
		},
		[]string{"service", "domain", "agent", "outcome"},
	)
	queryEscalatedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "router",
			Subsystem: "query",
			Name:      "escalated_total",
			Help:      "Total queries that pulled general-domain context.",
		},
		[]string{"service", "domain"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "router",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service", "endpoint"},
	)
	querySources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "router",
			Subsystem: "query",
			Name:      "sources",
			Help:      "Distribution of sources returned per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
		[]string{"service", "endpoint"},
	)
	classificationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "router",
			Subsystem: "classifier",
			Name:      "decisions_total",
			Help:      "Total classification decisions by route and domain.",
		},
		[]string{"service", "route", "domain"},
	)
	searchNoResults := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "router",
			Subsystem: "search",
			Name:      "no_results_total",
			Help:      "Total searches that returned only the placeholder result.",
		},
		[]string{"service", "domain"},
	)
	rejectedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "router",
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Total requests rejected by traffic control.",
		},
		[]string{"service", "reason"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryEscalatedTotal,
		queryDuration,
		querySources,
		classificationTotal,
		searchNoResults,
		rejectedTotal,
	)

	return &HTTPServerMetrics{
		ResilienceMetrics:   newResilienceMetrics(service, registry),
		registry:            registry,
		service:             service,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		queryTotal:          queryTotal,
		queryEscalatedTotal: queryEscalatedTotal,
		queryDuration:       queryDuration,
		querySources:        querySources,
		classificationTotal: classificationTotal,
		searchNoResults:     searchNoResults,
		rejectedTotal:       rejectedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/domains/") && strings.HasSuffix(path, "/sources"):
		return "/v1/domains/{domain}/sources"
	case strings.HasPrefix(path, "/v1/sources/"):
		return "/v1/sources/{source_id}"
	case strings.HasPrefix(path, "/v1/conversations/"):
		return "/v1/conversations/{conversation_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordQuery(endpoint, agent string, res domain.QueryResult, duration time.Duration) {
	if agent == "" {
		agent = "none"
	}
	outcome := string(res.Outcome)
	if outcome == "" {
		outcome = "unknown"
	}
	m.queryTotal.WithLabelValues(m.service, res.Domain, agent, outcome).Inc()
	if res.Escalated {
		m.queryEscalatedTotal.WithLabelValues(m.service, res.Domain).Inc()
	}
	m.queryDuration.WithLabelValues(m.service, endpoint).Observe(duration.Seconds())
	m.querySources.WithLabelValues(m.service, endpoint).Observe(float64(len(res.Sources)))
}

func (m *HTTPServerMetrics) RecordClassification(res domain.ClassificationResult) {
	m.classificationTotal.WithLabelValues(m.service, string(res.Route), res.Domain).Inc()
}

func (m *HTTPServerMetrics) RecordSearch(domainName string, results []domain.ScoredResult) {
	if len(results) == 1 && results[0].IsSentinel() {
		if domainName == "" {
			domainName = "all"
		}
		m.searchNoResults.WithLabelValues(m.service, domainName).Inc()
	}
}

func (m *HTTPServerMetrics) RecordRejected(reason string) {
	m.rejectedTotal.WithLabelValues(m.service, reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
