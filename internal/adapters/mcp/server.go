package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

const maxDocumentBytes = 32 << 20

// Tools exposes the document service as MCP tools.
type Tools struct {
	documents ports.DocumentService
}

func NewTools(documents ports.DocumentService) *Tools {
	return &Tools{documents: documents}
}

// NewServer registers analyze_document, get_document and list_actions.
func NewServer(name, version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("analyze_document",
		mcp.WithDescription("Classify a document on disk, extract its metadata and derive actionable items."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the document file to analyze.")),
	), tools.AnalyzeDocument)

	s.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Return the stored analysis result of a previously processed document."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id returned by analyze_document.")),
	), tools.GetDocument)

	s.AddTool(mcp.NewTool("list_actions",
		mcp.WithDescription("List actionable items of a processed document, optionally filtered."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id returned by analyze_document.")),
		mcp.WithString("status", mcp.Description("pending, completed or overdue.")),
		mcp.WithString("priority", mcp.Description("low, medium or high.")),
		mcp.WithString("deadline", mcp.Description("Exact deadline, YYYY-MM-DD.")),
		mcp.WithString("deadline_before", mcp.Description("Deadline on or before, YYYY-MM-DD.")),
	), tools.ListActions)

	return s
}

func (t *Tools) AnalyzeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stat %s: %v", path, err)), nil
	}
	if info.IsDir() {
		return mcp.NewToolResultError(fmt.Sprintf("%s is a directory", path)), nil
	}
	if info.Size() > maxDocumentBytes {
		return mcp.NewToolResultError(fmt.Sprintf("%s exceeds %d bytes", path, maxDocumentBytes)), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", path, err)), nil
	}

	result, err := t.documents.Process(ctx, raw, filepath.Base(path))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(result)
}

func (t *Tools) GetDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := t.documents.GetByID(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(result)
}

func (t *Tools) ListActions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filter := domain.ActionFilter{
		Status:         domain.ActionStatus(strings.ToLower(req.GetString("status", ""))),
		Priority:       domain.Priority(strings.ToLower(req.GetString("priority", ""))),
		Deadline:       req.GetString("deadline", ""),
		DeadlineBefore: req.GetString("deadline_before", ""),
	}
	items, err := t.documents.ListActions(ctx, id, filter)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(items)
}

// toolError reports domain failures inside the tool result so the client
// model can see them; protocol errors are reserved for transport problems.
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", domain.ErrorCode(err), err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
