package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

const (
	DefaultConfidenceFloor    = 0.3
	DefaultDiscoveryMaxFields = 5
)

type Options struct {
	ConfidenceFloor    float64
	DiscoveryMaxFields int
	Params             domain.ModelParams
	Logger             *slog.Logger
	Observer           ports.PipelineObserver
	Now                func() time.Time
	NewID              func() string
}

// DocumentService runs the per-document pipeline: extract text, classify,
// resolve the metadata schema, extract metadata, derive actions, store.
type DocumentService struct {
	extractor ports.TextExtractor
	model     ports.ModelResolver
	store     ports.ResultStore
	catalog   *domain.Catalog
	deriver   *ActionDeriver

	confidenceFloor    float64
	discoveryMaxFields int
	params             domain.ModelParams
	logger             *slog.Logger
	observer           ports.PipelineObserver
	now                func() time.Time
	newID              func() string
}

var _ ports.DocumentService = (*DocumentService)(nil)

func NewDocumentService(
	extractor ports.TextExtractor,
	model ports.ModelResolver,
	store ports.ResultStore,
	catalog *domain.Catalog,
	opts Options,
) *DocumentService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.DiscoveryMaxFields <= 0 {
		opts.DiscoveryMaxFields = DefaultDiscoveryMaxFields
	}
	return &DocumentService{
		extractor:          extractor,
		model:              model,
		store:              store,
		catalog:            catalog,
		deriver:            NewActionDeriver(opts.NewID),
		confidenceFloor:    clamp01(opts.ConfidenceFloor),
		discoveryMaxFields: opts.DiscoveryMaxFields,
		params:             opts.Params,
		logger:             opts.Logger,
		observer:           opts.Observer,
		now:                opts.Now,
		newID:              opts.NewID,
	}
}

// Process analyzes one document under a freshly generated id.
func (s *DocumentService) Process(ctx context.Context, raw []byte, filename string) (*domain.DocumentResult, error) {
	if err := s.validate(raw, filename); err != nil {
		return nil, err
	}
	return s.run(ctx, s.newID(), filename, raw)
}

// ProcessWithID analyzes a document under an id assigned at ingest time.
func (s *DocumentService) ProcessWithID(ctx context.Context, documentID string, raw []byte, filename string) (*domain.DocumentResult, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "process document", errors.New("document id is required"))
	}
	if err := s.validate(raw, filename); err != nil {
		return nil, err
	}
	return s.run(ctx, documentID, filename, raw)
}

func (s *DocumentService) validate(raw []byte, filename string) error {
	if strings.TrimSpace(filename) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "process document", errors.New("filename is required"))
	}
	if len(raw) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "process document", errors.New("document is empty"))
	}
	if sup, ok := s.extractor.(interface{ Supports(string) bool }); ok && !sup.Supports(filename) {
		return domain.WrapError(domain.ErrInvalidInput, "process document", fmt.Errorf("unsupported file type: %s", filename))
	}
	return nil
}

type pipelineRun struct {
	result   *domain.DocumentResult
	issues   []string
	logger   *slog.Logger
	started  time.Time
	stage    domain.Stage
	degraded bool
}

func (r *pipelineRun) advance(stage domain.Stage, attrs ...any) {
	r.stage = stage
	r.logger.Info("document.stage", append([]any{"stage", string(stage)}, attrs...)...)
}

func (r *pipelineRun) degrade(err error) {
	r.degraded = true
	r.issues = append(r.issues, err.Error())
	r.logger.Warn("document.degraded", "stage", string(r.stage), "error", err)
}

func (s *DocumentService) run(ctx context.Context, documentID, filename string, raw []byte) (*domain.DocumentResult, error) {
	r := &pipelineRun{
		result: &domain.DocumentResult{
			DocumentID:      documentID,
			Filename:        filename,
			Metadata:        map[string]domain.MetadataField{},
			ActionableItems: []domain.ActionableItem{},
		},
		logger:  s.logger.With("document_id", documentID, "filename", filename),
		started: s.now(),
	}
	r.advance(domain.StageReceived, "bytes", len(raw))

	text, err := s.extractText(ctx, filename, raw)
	if err != nil {
		return s.fail(ctx, r, err)
	}
	r.advance(domain.StageTextExtracted, "chars", len(text))

	cls, err := s.classify(ctx, text)
	if err != nil {
		if !isParseError(err) {
			return s.fail(ctx, r, err)
		}
		cls = domain.Classification{Type: domain.TypeOther, Confidence: 0}
		r.degrade(err)
	}
	r.result.Classification = cls
	r.advance(domain.StageClassified, "type", string(cls.Type), "confidence", cls.Confidence)

	schema, err := s.resolveSchema(ctx, text, cls)
	if err != nil {
		r.degrade(err)
	}
	r.result.SchemaVariant = schema.Variant()
	r.result.SchemaVersion = schema.Version()
	var summary string
	if discovered, ok := schema.(domain.DiscoveredSchema); ok {
		summary = discovered.Summary
	}
	r.result.Summary = summary

	metadata, err := s.extractMetadata(ctx, text, schema, summary)
	if err != nil {
		r.degrade(err)
	}
	r.result.Metadata = metadata
	r.advance(domain.StageMetadataExtracted, "fields", len(metadata), "schema", schema.Variant())

	r.result.ActionableItems = s.deriver.Derive(r.result)
	r.advance(domain.StageActionsDerived, "items", len(r.result.ActionableItems))

	switch {
	case r.degraded:
		r.result.ProcessingStatus = domain.StatusPartial
	case !anyResolved(schema, metadata):
		r.result.ProcessingStatus = domain.StatusPartial
		r.issues = append(r.issues, "no metadata fields could be resolved")
	default:
		r.result.ProcessingStatus = domain.StatusSuccess
	}
	if len(r.issues) > 0 {
		msg := strings.Join(r.issues, "; ")
		r.result.ErrorMessage = &msg
	}

	if err := s.complete(ctx, r); err != nil {
		return nil, err
	}
	return r.result.Clone(), nil
}

func (s *DocumentService) extractText(ctx context.Context, filename string, raw []byte) (string, error) {
	text, err := s.extractor.Extract(ctx, filename, raw)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "extract text", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrExtraction, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

func (s *DocumentService) complete(ctx context.Context, r *pipelineRun) error {
	r.result.CreatedAt = s.now().UTC()
	if err := s.store.Save(ctx, r.result); err != nil {
		return fmt.Errorf("save document result: %w", err)
	}
	if r.result.ProcessingStatus == domain.StatusFailed {
		r.advance(domain.StageFailed)
	} else {
		r.advance(domain.StageCompleted, "status", string(r.result.ProcessingStatus))
	}
	if s.observer != nil {
		s.observer.ObserveDocument(r.result.ProcessingStatus, s.now().Sub(r.started))
	}
	return nil
}

// fail records the document as failed and returns cause to the caller.
func (s *DocumentService) fail(ctx context.Context, r *pipelineRun, cause error) (*domain.DocumentResult, error) {
	r.logger.Error("document.failed", "stage", string(r.stage), "error", cause)
	msg := cause.Error()
	r.result.ProcessingStatus = domain.StatusFailed
	r.result.ErrorMessage = &msg
	if err := s.complete(ctx, r); err != nil {
		return nil, errors.Join(cause, err)
	}
	return r.result.Clone(), cause
}
