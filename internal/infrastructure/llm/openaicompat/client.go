package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/llm"
)

// Client is a ModelTransport for OpenAI-compatible /chat/completions
// endpoints in JSON mode.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ ports.ModelTransport = (*Client)(nil)

func New(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

func (c *Client) Generate(ctx context.Context, req domain.ModelRequest) (string, error) {
	model := req.Params.Model
	if model == "" {
		model = c.model
	}
	operation := req.Operation
	if operation == "" {
		operation = "generate"
	}

	messages := []map[string]any{
		{"role": "system", "content": "Return ONLY a JSON object. No markdown, no commentary."},
		{"role": "user", "content": req.Prompt},
	}
	if len(req.Schema) > 0 {
		messages = append(messages, map[string]any{"role": "system", "content": "JSON Schema:\n" + mustJSON(req.Schema)})
	}

	body := map[string]any{
		"model":           model,
		"temperature":     req.Params.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}
	if req.Params.MaxOutputTokens > 0 {
		body["max_tokens"] = req.Params.MaxOutputTokens
	}

	raw, err := c.post(ctx, c.baseURL+"/chat/completions", body, operation)
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode %s response: %w", operation, err)
	}
	if len(cc.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any, operation string) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &llm.HTTPStatusError{
			Provider:   "openai",
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(msg),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}
	return data, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
