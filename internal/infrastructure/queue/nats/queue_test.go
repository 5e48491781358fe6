package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
)

func TestJobCodecRoundTrip(t *testing.T) {
	job := domain.AnalyzeJob{
		DocumentID: "doc-1",
		Filename:   "a.pdf",
		StorageKey: "doc-1_a.pdf",
		EnqueuedAt: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	payload, err := encodeJob(job)
	if err != nil {
		t.Fatalf("encodeJob() error = %v", err)
	}
	got, err := decodeJob(payload)
	if err != nil {
		t.Fatalf("decodeJob() error = %v", err)
	}
	if got.DocumentID != job.DocumentID || got.StorageKey != job.StorageKey || got.Filename != job.Filename || !got.EnqueuedAt.Equal(job.EnqueuedAt) {
		t.Fatalf("decodeJob() = %+v, want %+v", got, job)
	}
}

func TestDecodeJobRejectsIncompletePayload(t *testing.T) {
	for _, raw := range []string{`not json`, `{"document_id":"doc-1"}`, `{}`} {
		if _, err := decodeJob([]byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestClassifyPublishError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "timeout", err: nats.ErrTimeout, retryable: true, record: true},
		{name: "no servers", err: nats.ErrNoServers, retryable: true, record: true},
		{name: "reconnecting", err: fmt.Errorf("publish: %w", nats.ErrConnectionReconnecting), retryable: true, record: true},
		{name: "cancelled", err: context.Canceled},
		{name: "payload too large", err: nats.ErrMaxPayload},
		{name: "bad subject", err: nats.ErrBadSubject},
		{name: "unknown", err: errors.New("permissions violation"), record: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := classifyPublishError(tc.err)
			if class.Retryable != tc.retryable || class.RecordFailure != tc.record {
				t.Fatalf("classifyPublishError(%v) = %+v", tc.err, class)
			}
		})
	}
}

func TestPublishErrorCarriesJobAndKind(t *testing.T) {
	job := domain.AnalyzeJob{DocumentID: "doc-7", StorageKey: "doc-7_a.pdf"}

	err := newPublishError(job, "documents.analyze", nats.ErrNoServers)
	if !domain.IsKind(err, domain.ErrTemporary) || !errors.Is(err, nats.ErrNoServers) {
		t.Fatalf("expected temporary error wrapping ErrNoServers, got %v", err)
	}
	if err.DocumentID != "doc-7" || err.Subject != "documents.analyze" {
		t.Fatalf("unexpected publish error fields: %+v", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "doc-7") || !strings.Contains(msg, "documents.analyze") {
		t.Fatalf("error message should name job and subject: %q", msg)
	}

	fatal := newPublishError(job, "documents.analyze", nats.ErrMaxPayload)
	if fatal.Retryable || domain.IsKind(fatal, domain.ErrTemporary) {
		t.Fatalf("oversized payload must not be temporary: %v", fatal)
	}

	interrupted := &resilience.InterruptedError{Operation: "nats.publish_analyze_job", Attempts: 1, Err: errors.Join(context.Canceled, nats.ErrTimeout)}
	if got := newPublishError(job, "documents.analyze", interrupted); !got.Retryable {
		t.Fatalf("publish interrupted during backoff should stay retryable")
	}
}
