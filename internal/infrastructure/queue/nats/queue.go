package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
)

const workerQueueGroup = "workers"

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("document-intelligence"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats.disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats.reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishAnalyzeJob(ctx context.Context, job domain.AnalyzeJob) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		return q.conn.Publish(q.subject, payload)
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish_analyze_job", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		pubErr := newPublishError(job, q.subject, err)
		q.logger.Warn("nats.publish_failed",
			"document_id", job.DocumentID,
			"subject", q.subject,
			"retryable", pubErr.Retryable,
			"error", err,
		)
		return pubErr
	}
	return nil
}

// SubscribeAnalyzeJobs delivers jobs to handler until ctx is done, then drains
// the subscription. Workers share one queue group so each job runs once.
func (q *Queue) SubscribeAnalyzeJobs(ctx context.Context, handler func(context.Context, domain.AnalyzeJob) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		job, err := decodeJob(msg.Data)
		if err != nil {
			q.logger.Error("nats.job_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, job); err != nil {
			q.logger.Error("worker.handler_failed", "document_id", job.DocumentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeJob(job domain.AnalyzeJob) ([]byte, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal analyze job: %w", err)
	}
	return payload, nil
}

func decodeJob(data []byte) (domain.AnalyzeJob, error) {
	var job domain.AnalyzeJob
	if err := json.Unmarshal(data, &job); err != nil {
		return domain.AnalyzeJob{}, fmt.Errorf("unmarshal analyze job: %w", err)
	}
	if job.DocumentID == "" || job.StorageKey == "" {
		return domain.AnalyzeJob{}, errors.New("analyze job is missing document_id or storage_key")
	}
	return job, nil
}
