package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// PipelineMetrics counts cache events, model calls and document outcomes. It
// satisfies cache.Observer, llm.Observer and ports.PipelineObserver.
type PipelineMetrics struct {
	service string

	cacheEvents      *prometheus.CounterVec
	modelCalls       *prometheus.CounterVec
	modelAttempts    *prometheus.HistogramVec
	modelDuration    *prometheus.HistogramVec
	documentsTotal   *prometheus.CounterVec
	documentDuration *prometheus.HistogramVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	cacheEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Response cache events by kind.",
		},
		[]string{"service", "event"},
	)
	modelCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Model resolve calls by operation and outcome.",
		},
		[]string{"service", "operation", "outcome"},
	)
	modelAttempts := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "attempts",
			Help:      "Transport attempts per model resolve call.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8},
		},
		[]string{"service", "operation"},
	)
	modelDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Model resolve duration in seconds, retries included.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "operation"},
	)
	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Processed documents by final status.",
		},
		[]string{"service", "status"},
	)
	documentDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "document_duration_seconds",
			Help:      "End-to-end document processing duration.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)

	registerer.MustRegister(cacheEvents, modelCalls, modelAttempts, modelDuration, documentsTotal, documentDuration)

	return &PipelineMetrics{
		service:          service,
		cacheEvents:      cacheEvents,
		modelCalls:       modelCalls,
		modelAttempts:    modelAttempts,
		modelDuration:    modelDuration,
		documentsTotal:   documentsTotal,
		documentDuration: documentDuration,
	}
}

func (m *PipelineMetrics) ObserveCache(event string) {
	m.cacheEvents.WithLabelValues(m.service, event).Inc()
}

func (m *PipelineMetrics) ObserveModelCall(operation, outcome string, attempts int, duration time.Duration) {
	m.modelCalls.WithLabelValues(m.service, operation, outcome).Inc()
	m.modelAttempts.WithLabelValues(m.service, operation).Observe(float64(attempts))
	m.modelDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveDocument(status domain.ProcessingStatus, duration time.Duration) {
	m.documentsTotal.WithLabelValues(m.service, string(status)).Inc()
	m.documentDuration.WithLabelValues(m.service, string(status)).Observe(duration.Seconds())
}
