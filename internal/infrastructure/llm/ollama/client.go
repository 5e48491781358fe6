package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

// Client is a ModelTransport backed by the Ollama /api/generate endpoint.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ ports.ModelTransport = (*Client)(nil)

func New(baseURL, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		// Per-attempt deadlines come from the caller's context.
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

func (c *Client) Generate(ctx context.Context, req domain.ModelRequest) (string, error) {
	model := req.Params.Model
	if model == "" {
		model = c.model
	}

	options := map[string]any{
		"temperature": req.Params.Temperature,
	}
	if req.Params.MaxOutputTokens > 0 {
		options["num_predict"] = req.Params.MaxOutputTokens
	}

	reqBody := map[string]any{
		"model":   model,
		"prompt":  req.Prompt,
		"stream":  false,
		"format":  "json",
		"options": options,
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, operationName(req)); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func operationName(req domain.ModelRequest) string {
	if req.Operation == "" {
		return "generate"
	}
	return req.Operation
}
