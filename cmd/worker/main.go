package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kirillkom/document-intelligence/internal/bootstrap"
	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/observability/logging"
	"github.com/kirillkom/document-intelligence/internal/observability/metrics"
)

const (
	serviceName = "worker"
	jobTimeout  = 10 * time.Minute
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    serviceName,
		Logger:     logger,
		Registerer: workerMetrics.Registry(),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.EnableQueue(); err != nil {
		logger.Error("queue_init_failed", "error", err)
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: workerMetrics.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", "error", err)
		}
	}()

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	slots := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "concurrency", concurrency)
	err = app.Queue.SubscribeAnalyzeJobs(ctx, func(handlerCtx context.Context, job domain.AnalyzeJob) error {
		// Blocking here holds the subscription until a slot frees up.
		select {
		case slots <- struct{}{}:
		case <-handlerCtx.Done():
			return handlerCtx.Err()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-slots }()
			runJob(ctx, app, workerMetrics, job)
		}()
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}

	wg.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

func runJob(ctx context.Context, app *bootstrap.App, m *metrics.WorkerMetrics, job domain.AnalyzeJob) {
	// Finish in-flight jobs even after shutdown was requested.
	processCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
	defer cancel()

	start := time.Now()
	m.StartJob(job, start)
	result, err := app.Processor.ProcessJob(processCtx, job)
	m.FinishJob(result, err, time.Since(start))

	if err != nil {
		app.Logger.Error("job_failed", "document_id", job.DocumentID, "error", err)
		return
	}
	app.Logger.Info("job_done", "document_id", job.DocumentID, "status", string(result.ProcessingStatus))
}
