package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// Job outcomes that carry no stored result.
const (
	JobOutcomeRetryable = "retryable"
	JobOutcomeRejected  = "rejected"
)

// WorkerMetrics tracks analyze jobs consumed from the queue.
type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobsActive  prometheus.Gauge
	queueLag    prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "analyze_jobs_total",
			Help:        "Analyze jobs by outcome: the stored processing status, or retryable/rejected when no result was stored.",
			ConstLabels: serviceLabel,
		},
		[]string{"outcome"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "analyze_job_duration_seconds",
			Help:        "Analyze job duration from source load to stored result.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: serviceLabel,
		},
		[]string{"outcome"},
	)
	jobsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "analyze_jobs_active",
			Help:        "Analyze jobs currently holding a worker slot.",
			ConstLabels: serviceLabel,
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "queue_lag_seconds",
			Help:        "Delay between upload and the start of analysis.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: serviceLabel,
		},
	)

	registry.MustRegister(jobsTotal, jobDuration, jobsActive, queueLag)

	return &WorkerMetrics{
		service:     service,
		registry:    registry,
		jobsTotal:   jobsTotal,
		jobDuration: jobDuration,
		jobsActive:  jobsActive,
		queueLag:    queueLag,
	}
}

func (m *WorkerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob(job domain.AnalyzeJob, now time.Time) {
	m.jobsActive.Inc()
	if job.EnqueuedAt.IsZero() {
		return
	}
	if lag := now.Sub(job.EnqueuedAt); lag >= 0 {
		m.queueLag.Observe(lag.Seconds())
	}
}

func (m *WorkerMetrics) FinishJob(result *domain.DocumentResult, err error, duration time.Duration) {
	m.jobsActive.Dec()
	outcome := JobOutcome(result, err)
	m.jobsTotal.WithLabelValues(outcome).Inc()
	m.jobDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// JobOutcome labels a finished job. A stored result reports its processing
// status, including failed; otherwise temporary errors are retryable.
func JobOutcome(result *domain.DocumentResult, err error) string {
	if result != nil && result.ProcessingStatus != "" {
		return string(result.ProcessingStatus)
	}
	if err == nil {
		return string(domain.StatusSuccess)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return JobOutcomeRetryable
	}
	return JobOutcomeRejected
}
