package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

// WorkerMetrics covers source ingestion in the worker process.
type WorkerMetrics struct {
	*ResilienceMetrics

	registry *prometheus.Registry
	service  string

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}

	processTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "router",
		Subsystem:   "worker",
		Name:        "source_process_total",
		Help:        "Processed sources by result (success, failed, temporary).",
		ConstLabels: labels,
	}, []string{"result"})
	processDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   "router",
		Subsystem:   "worker",
		Name:        "source_process_duration_seconds",
		Help:        "Source extraction, chunking and embedding duration.",
		Buckets:     []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		ConstLabels: labels,
	}, []string{"result"})
	processInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "router",
		Subsystem:   "worker",
		Name:        "source_process_in_flight",
		Help:        "Sources currently being processed.",
		ConstLabels: labels,
	})
	registry.MustRegister(processTotal, processDuration, processInFlight)

	return &WorkerMetrics{
		ResilienceMetrics: newResilienceMetrics(service, registry),
		registry:          registry,
		service:           service,
		processTotal:      processTotal,
		processDuration:   processDuration,
		processInFlight:   processInFlight,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartSource() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishSource(duration time.Duration, err error) {
	m.processInFlight.Dec()
	result := processResult(err)
	m.processTotal.WithLabelValues(result).Inc()
	m.processDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func processResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "failed"
	}
}
