package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
	"github.com/kirillkom/document-intelligence/internal/observability/metrics"
)

const (
	maxUploadBytes   = 32 << 20
	backpressureWait = 250 * time.Millisecond
	serviceName      = "api"
)

type Router struct {
	cfg       config.Config
	documents ports.DocumentService
	ingestor  ports.DocumentIngestor
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
}

// NewRouter builds the HTTP surface. ingestor may be nil when asynchronous
// processing is not configured.
func NewRouter(
	cfg config.Config,
	documents ports.DocumentService,
	ingestor ports.DocumentIngestor,
) *Router {
	return &Router{
		cfg:       cfg,
		documents: documents,
		ingestor:  ingestor,
		logger:    slog.Default(),
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) WithLogger(logger *slog.Logger) *Router {
	if logger != nil {
		rt.logger = logger
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	analyze := backpressureMiddleware(http.HandlerFunc(rt.analyzeDocument), rt.cfg.APIMaxInFlight, backpressureWait, rt.recordRejected)

	api := http.NewServeMux()
	api.Handle("POST /v1/documents/analyze", analyze)
	api.HandleFunc("POST /v1/documents", rt.enqueueDocument)
	api.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	api.HandleFunc("GET /v1/documents/{id}/actions", rt.listActions)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", rateLimitMiddleware(api, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.recordRejected))

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(rt.logger, handler))
}

func (rt *Router) recordRejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	filename, raw, err := readUpload(w, r)
	if err != nil {
		writeError(w, err, nil)
		return
	}

	result, err := rt.documents.Process(r.Context(), raw, filename)
	if err != nil {
		var details map[string]any
		if result != nil {
			details = map[string]any{"document_id": result.DocumentID}
		}
		writeError(w, err, details)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) enqueueDocument(w http.ResponseWriter, r *http.Request) {
	if rt.ingestor == nil {
		writeError(w, domain.WrapError(domain.ErrTemporary, "enqueue document", errors.New("asynchronous processing is not configured")), nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "enqueue document", errors.New("multipart field 'file' is required")), nil)
		return
	}
	defer file.Close()

	job, err := rt.ingestor.Enqueue(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	result, err := rt.documents.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) listActions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseActionFilter(r)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	items, err := rt.documents.ListActions(r.Context(), r.PathValue("id"), filter)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": r.PathValue("id"),
		"items":       items,
	})
}

func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("multipart field 'file' is required"))
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return "", nil, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
	}
	return header.Filename, raw, nil
}

func parseActionFilter(r *http.Request) (domain.ActionFilter, error) {
	q := r.URL.Query()
	filter := domain.ActionFilter{
		Status:         domain.ActionStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
		Priority:       domain.Priority(strings.ToLower(strings.TrimSpace(q.Get("priority")))),
		Deadline:       strings.TrimSpace(q.Get("deadline")),
		DeadlineBefore: strings.TrimSpace(q.Get("deadline_before")),
	}
	switch filter.Status {
	case "", domain.ActionPending, domain.ActionCompleted, domain.ActionOverdue:
	default:
		return filter, invalidFilter("status", string(filter.Status))
	}
	switch filter.Priority {
	case "", domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh:
	default:
		return filter, invalidFilter("priority", string(filter.Priority))
	}
	for name, value := range map[string]string{"deadline": filter.Deadline, "deadline_before": filter.DeadlineBefore} {
		if value == "" {
			continue
		}
		if _, err := time.Parse(domain.DateLayout, value); err != nil {
			return filter, invalidFilter(name, value)
		}
	}
	return filter, nil
}

func invalidFilter(name, value string) error {
	return domain.WrapError(domain.ErrInvalidInput, "parse action filter", fmt.Errorf("invalid %s %q", name, value))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
