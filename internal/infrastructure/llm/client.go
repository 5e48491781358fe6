package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/cache"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
)

const (
	OutcomeSuccess    = "success"
	OutcomeCacheHit   = "cache_hit"
	OutcomeParseError = "parse_error"
	OutcomeAPIError   = "api_error"
)

// Observer is notified once per Resolve call.
type Observer interface {
	ObserveModelCall(operation, outcome string, attempts int, duration time.Duration)
}

type Options struct {
	Cache          *cache.Manager
	Executor       *resilience.Executor
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Observer       Observer
}

// Client resolves structured model requests through the response cache,
// retry policy and circuit breaker in front of a ModelTransport.
type Client struct {
	transport      ports.ModelTransport
	cache          *cache.Manager
	executor       *resilience.Executor
	limiter        *rate.Limiter
	requestTimeout time.Duration
	logger         *slog.Logger
	observer       Observer
	schemas        *schemaCache
}

var _ ports.ModelResolver = (*Client)(nil)

func NewClient(transport ports.ModelTransport, opts Options) *Client {
	if opts.Executor == nil {
		opts.Executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	return &Client{
		transport:      transport,
		cache:          opts.Cache,
		executor:       opts.Executor,
		limiter:        opts.Limiter,
		requestTimeout: opts.RequestTimeout,
		logger:         opts.Logger,
		observer:       opts.Observer,
		schemas:        newSchemaCache(),
	}
}

// Resolve returns the decoded JSON object the model produced for req.
// Failures are *domain.ModelAPIError or *domain.ResponseParseError.
func (c *Client) Resolve(ctx context.Context, req domain.ModelRequest) (map[string]any, error) {
	start := time.Now()
	op := strings.TrimSpace(req.Operation)
	if op == "" {
		op = "generate"
	}

	key := cache.Key(req.Prompt, req.Schema)
	if payload, ok := c.cache.Get(ctx, key); ok {
		out, err := c.decode(req.Schema, payload)
		if err != nil {
			c.observe(op, OutcomeParseError, 0, start)
			return nil, err
		}
		c.logger.Debug("model.cache_hit", "operation", op, "key", key)
		c.observe(op, OutcomeCacheHit, 0, start)
		return out, nil
	}

	attempts := 0
	var raw string
	err := c.executor.Execute(ctx, op, func(ctx context.Context) error {
		attempts++
		text, err := c.attempt(ctx, req)
		if err != nil {
			return err
		}
		raw = text
		return nil
	}, ClassifyError)
	if err != nil {
		apiErr := c.toModelAPIError(op, attempts, err)
		c.logger.Error("model.call_failed",
			"operation", op,
			"attempts", apiErr.Attempts,
			"retryable", apiErr.Retryable,
			"error", apiErr.Err,
		)
		c.observe(op, OutcomeAPIError, attempts, start)
		return nil, apiErr
	}

	out, err := c.decode(req.Schema, raw)
	if err != nil {
		c.logger.Warn("model.parse_failed", "operation", op, "error", err, "raw_len", len(raw))
		c.observe(op, OutcomeParseError, attempts, start)
		return nil, err
	}

	if err := c.cache.Put(ctx, key, raw); err != nil {
		c.logger.Warn("model.cache_write_failed", "operation", op, "error", err)
	}
	c.observe(op, OutcomeSuccess, attempts, start)
	return out, nil
}

func (c *Client) attempt(ctx context.Context, req domain.ModelRequest) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", err
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	text, err := c.transport.Generate(attemptCtx, req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", errors.Join(ErrRequestTimeout, err)
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *Client) decode(schema domain.ResponseSchema, raw string) (map[string]any, error) {
	out, err := ParseObject(raw)
	if err != nil {
		return nil, err
	}
	if err := c.schemas.Validate(schema, out); err != nil {
		return nil, &domain.ResponseParseError{Raw: raw, Err: err}
	}
	return out, nil
}

func (c *Client) toModelAPIError(op string, attempts int, err error) *domain.ModelAPIError {
	var exhausted *resilience.ExhaustedError
	if errors.As(err, &exhausted) {
		return &domain.ModelAPIError{
			Operation: op,
			Attempts:  exhausted.Attempts,
			Retryable: true,
			Err:       exhausted.Err,
		}
	}
	var interrupted *resilience.InterruptedError
	if errors.As(err, &interrupted) {
		return &domain.ModelAPIError{
			Operation: op,
			Attempts:  interrupted.Attempts,
			Retryable: true,
			Err:       interrupted.Err,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return &domain.ModelAPIError{Operation: op, Attempts: attempts, Retryable: true, Err: err}
	}
	return &domain.ModelAPIError{Operation: op, Attempts: attempts, Retryable: false, Err: err}
}

func (c *Client) observe(op, outcome string, attempts int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveModelCall(op, outcome, attempts, time.Since(start))
	}
}
