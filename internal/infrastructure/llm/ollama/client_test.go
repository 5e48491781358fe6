package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/llm"
)

func TestGenerateSendsPromptAndParams(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  {\"type\":\"invoice\"}  "}`))
	}))
	defer server.Close()

	client := New(server.URL+"/", "llama3")
	got, err := client.Generate(context.Background(), domain.ModelRequest{
		Operation: "classify",
		Prompt:    "classify me",
		Params:    domain.ModelParams{Temperature: 0.1, MaxOutputTokens: 256},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != `{"type":"invoice"}` {
		t.Fatalf("unexpected response: %q", got)
	}
	if payload["model"] != "llama3" || payload["prompt"] != "classify me" || payload["format"] != "json" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	options, _ := payload["options"].(map[string]any)
	if options["temperature"] != 0.1 || options["num_predict"] != float64(256) {
		t.Fatalf("unexpected options: %+v", options)
	}
}

func TestGenerateRequestModelOverridesDefault(t *testing.T) {
	var model string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		model, _ = payload["model"].(string)
		_, _ = w.Write([]byte(`{"response":"{}"}`))
	}))
	defer server.Close()

	client := New(server.URL, "default-model")
	if _, err := client.Generate(context.Background(), domain.ModelRequest{Prompt: "p", Params: domain.ModelParams{Model: "custom"}}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if model != "custom" {
		t.Fatalf("expected request model to win, got %q", model)
	}
}

func TestGenerateReturnsHTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "gen")
	_, err := client.Generate(context.Background(), domain.ModelRequest{Operation: "extract", Prompt: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
	var statusErr *llm.HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected HTTPStatusError 502, got %v", err)
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !llm.ClassifyError(err).Retryable {
		t.Fatalf("502 must be retryable")
	}
}
