package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/document-intelligence/internal/adapters/http"
	"github.com/kirillkom/document-intelligence/internal/bootstrap"
	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
	"github.com/kirillkom/document-intelligence/internal/observability/logging"
	"github.com/kirillkom/document-intelligence/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    "api",
		Logger:     logger,
		Registerer: httpMetrics.Registry(),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	var ingestor ports.DocumentIngestor
	if cfg.NATSURL != "" {
		if err := app.EnableQueue(); err != nil {
			logger.Warn("async_ingest_disabled", "error", err)
		} else {
			ingestor = app.Ingestor
		}
	}
	router := httpadapter.NewRouter(cfg, app.Documents, ingestor)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.WithMetrics(httpMetrics).WithLogger(logger).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
