package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

const resultCountTimeout = 2 * time.Second

// ResultsCollector exports the number of stored document results per
// processing status, queried from the result store on every scrape.
type ResultsCollector struct {
	service string
	counter ports.ResultCounter
	logger  *slog.Logger
	desc    *prometheus.Desc
}

func NewResultsCollector(service string, counter ports.ResultCounter, logger *slog.Logger) *ResultsCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultsCollector{
		service: service,
		counter: counter,
		logger:  logger,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "results", "stored"),
			"Stored document results by processing status.",
			[]string{"service", "status"},
			nil,
		),
	}
}

func (c *ResultsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *ResultsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), resultCountTimeout)
	defer cancel()

	counts, err := c.counter.CountByStatus(ctx)
	if err != nil {
		c.logger.Warn("metrics.result_count_failed", "error", err)
		return
	}
	for _, status := range []domain.ProcessingStatus{domain.StatusSuccess, domain.StatusPartial, domain.StatusFailed} {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(counts[status]), c.service, string(status))
	}
}
