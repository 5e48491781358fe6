package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
)

// PublishError reports an analyze job that could not be handed to the broker.
// Retryable failures unwrap to domain.ErrTemporary so uploads answer 503 and
// the client can resubmit.
type PublishError struct {
	DocumentID string
	Subject    string
	Retryable  bool
	Err        error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish analyze job document_id=%s subject=%s: %v", e.DocumentID, e.Subject, e.Err)
}

func (e *PublishError) Unwrap() []error {
	if e.Retryable {
		return []error{domain.ErrTemporary, e.Err}
	}
	return []error{e.Err}
}

// classifyPublishError decides whether a publish attempt for an analyze job is
// worth repeating. Oversized payloads and malformed subjects fail the same way
// on every attempt and say nothing about broker health.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err),
		errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrDisconnected):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func newPublishError(job domain.AnalyzeJob, subject string, err error) *PublishError {
	var interrupted *resilience.InterruptedError
	retryable := errors.As(err, &interrupted) || classifyPublishError(err).Retryable
	return &PublishError{
		DocumentID: job.DocumentID,
		Subject:    subject,
		Retryable:  retryable,
		Err:        err,
	}
}
