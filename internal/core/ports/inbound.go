package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// DocumentService is the caller-facing facade over the processing pipeline.
type DocumentService interface {
	Process(ctx context.Context, raw []byte, filename string) (*domain.DocumentResult, error)
	GetByID(ctx context.Context, documentID string) (*domain.DocumentResult, error)
	ListActions(ctx context.Context, documentID string, filter domain.ActionFilter) ([]domain.ActionableItem, error)
}

// DocumentIngestor accepts documents for asynchronous processing.
type DocumentIngestor interface {
	Enqueue(ctx context.Context, filename string, body io.Reader) (*domain.AnalyzeJob, error)
}

// JobProcessor processes a queued document under a pre-assigned id.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job domain.AnalyzeJob) (*domain.DocumentResult, error)
}
