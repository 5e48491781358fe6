package mcpadapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

type documentsFake struct {
	processed  string
	filter     domain.ActionFilter
	processErr error
}

func (f *documentsFake) Process(_ context.Context, raw []byte, filename string) (*domain.DocumentResult, error) {
	f.processed = filename + ":" + string(raw)
	if f.processErr != nil {
		return nil, f.processErr
	}
	return &domain.DocumentResult{DocumentID: "doc-1", Filename: filename, ProcessingStatus: domain.StatusSuccess}, nil
}

func (f *documentsFake) GetByID(_ context.Context, id string) (*domain.DocumentResult, error) {
	if id != "doc-1" {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id="+id))
	}
	return &domain.DocumentResult{DocumentID: "doc-1"}, nil
}

func (f *documentsFake) ListActions(_ context.Context, _ string, filter domain.ActionFilter) ([]domain.ActionableItem, error) {
	f.filter = filter
	return []domain.ActionableItem{{ItemID: "a", Description: "Pay invoice"}}, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
		return ""
	}
}

func TestAnalyzeDocumentReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoice.txt")
	if err := os.WriteFile(path, []byte("INVOICE"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	docs := &documentsFake{}
	res, err := NewTools(docs).AnalyzeDocument(context.Background(), callRequest("analyze_document", map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("AnalyzeDocument() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	if docs.processed != "invoice.txt:INVOICE" {
		t.Fatalf("unexpected processed input %q", docs.processed)
	}
	if !strings.Contains(resultText(t, res), `"document_id": "doc-1"`) {
		t.Fatalf("expected result json, got %s", resultText(t, res))
	}
}

func TestAnalyzeDocumentReportsErrors(t *testing.T) {
	tools := NewTools(&documentsFake{})
	res, err := tools.AnalyzeDocument(context.Background(), callRequest("analyze_document", map[string]any{}))
	if err != nil || !res.IsError {
		t.Fatalf("expected tool error for missing path, got %v %+v", err, res)
	}

	res, err = tools.AnalyzeDocument(context.Background(), callRequest("analyze_document", map[string]any{"path": filepath.Join(t.TempDir(), "missing.txt")}))
	if err != nil || !res.IsError {
		t.Fatalf("expected tool error for missing file, got %v %+v", err, res)
	}

	path := filepath.Join(t.TempDir(), "a.txt")
	_ = os.WriteFile(path, []byte("x"), 0o644)
	failing := NewTools(&documentsFake{processErr: domain.WrapError(domain.ErrExtraction, "extract", errors.New("bad"))})
	res, err = failing.AnalyzeDocument(context.Background(), callRequest("analyze_document", map[string]any{"path": path}))
	if err != nil || !res.IsError || !strings.HasPrefix(resultText(t, res), "EXTRACTION_FAILED") {
		t.Fatalf("expected coded tool error, got %v %+v", err, res)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	res, err := NewTools(&documentsFake{}).GetDocument(context.Background(), callRequest("get_document", map[string]any{"document_id": "nope"}))
	if err != nil || !res.IsError || !strings.HasPrefix(resultText(t, res), "DOCUMENT_NOT_FOUND") {
		t.Fatalf("expected not found tool error, got %v %+v", err, res)
	}
}

func TestListActionsPassesFilter(t *testing.T) {
	docs := &documentsFake{}
	res, err := NewTools(docs).ListActions(context.Background(), callRequest("list_actions", map[string]any{
		"document_id": "doc-1",
		"status":      "Pending",
		"priority":    "high",
	}))
	if err != nil || res.IsError {
		t.Fatalf("ListActions() = %v %+v", err, res)
	}
	if docs.filter.Status != domain.ActionPending || docs.filter.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected filter %+v", docs.filter)
	}
	if !strings.Contains(resultText(t, res), "Pay invoice") {
		t.Fatalf("expected items in result")
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer("docintel", "test", NewTools(&documentsFake{}))
	if s == nil {
		t.Fatalf("expected server")
	}
}
