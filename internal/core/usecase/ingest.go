package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

// IngestDocumentUseCase stores an uploaded document and queues it for
// asynchronous analysis under a pre-assigned document id.
type IngestDocumentUseCase struct {
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	now     func() time.Time
}

var _ ports.DocumentIngestor = (*IngestDocumentUseCase)(nil)

func NewIngestDocumentUseCase(storage ports.ObjectStorage, queue ports.MessageQueue) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		storage: storage,
		queue:   queue,
		now:     time.Now,
	}
}

func (uc *IngestDocumentUseCase) Enqueue(ctx context.Context, filename string, body io.Reader) (*domain.AnalyzeJob, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "enqueue document", errors.New("filename is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	job := &domain.AnalyzeJob{
		DocumentID: id,
		Filename:   filename,
		StorageKey: storageKey,
		EnqueuedAt: uc.now().UTC(),
	}
	if err := uc.queue.PublishAnalyzeJob(ctx, *job); err != nil {
		if delErr := uc.storage.Delete(ctx, storageKey); delErr != nil {
			return nil, fmt.Errorf("publish analyze job: %w; cleanup stored document: %v", err, delErr)
		}
		return nil, fmt.Errorf("publish analyze job: %w", err)
	}
	return job, nil
}

// AnalyzeJobProcessor runs queued jobs through the document pipeline.
type AnalyzeJobProcessor struct {
	service *DocumentService
	storage ports.ObjectStorage
	logger  *slog.Logger
}

var _ ports.JobProcessor = (*AnalyzeJobProcessor)(nil)

func NewAnalyzeJobProcessor(service *DocumentService, storage ports.ObjectStorage, logger *slog.Logger) *AnalyzeJobProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeJobProcessor{service: service, storage: storage, logger: logger}
}

func (p *AnalyzeJobProcessor) ProcessJob(ctx context.Context, job domain.AnalyzeJob) (*domain.DocumentResult, error) {
	reader, err := p.storage.Open(ctx, job.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	raw, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}

	result, procErr := p.service.ProcessWithID(ctx, job.DocumentID, raw, job.Filename)
	if procErr != nil && domain.IsKind(procErr, domain.ErrTemporary) {
		// Keep the source so a redelivered job can retry.
		return result, procErr
	}
	if err := p.storage.Delete(ctx, job.StorageKey); err != nil {
		p.logger.Warn("job.cleanup_failed", "document_id", job.DocumentID, "storage_key", job.StorageKey, "error", err)
	}
	return result, procErr
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
