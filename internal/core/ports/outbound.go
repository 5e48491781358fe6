package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

// ResultStore persists assembled document results keyed by document id.
type ResultStore interface {
	Save(ctx context.Context, result *domain.DocumentResult) error
	GetByID(ctx context.Context, documentID string) (*domain.DocumentResult, error)
}

// ResultCounter is implemented by stores that can report how many results
// they hold per processing status.
type ResultCounter interface {
	CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int, error)
}

// TextExtractor turns raw document bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, raw []byte) (string, error)
}

// ModelTransport performs a single call to the model service.
type ModelTransport interface {
	Generate(ctx context.Context, req domain.ModelRequest) (string, error)
}

// ModelResolver resolves a prompt into a parsed JSON object, using the cache
// and retrying transient failures.
type ModelResolver interface {
	Resolve(ctx context.Context, req domain.ModelRequest) (map[string]any, error)
}

// ObjectStorage stores source documents awaiting asynchronous processing.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes analyze jobs.
type MessageQueue interface {
	PublishAnalyzeJob(ctx context.Context, job domain.AnalyzeJob) error
	SubscribeAnalyzeJobs(ctx context.Context, handler func(context.Context, domain.AnalyzeJob) error) error
}

// PipelineObserver receives per-document processing outcomes.
type PipelineObserver interface {
	ObserveDocument(status domain.ProcessingStatus, duration time.Duration)
}
