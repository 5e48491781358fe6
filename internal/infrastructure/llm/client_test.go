package llm

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/cache"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/cache/fsstore"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
)

type scriptedReply struct {
	text string
	err  error
}

type fakeTransport struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   int
	block   bool
}

func (f *fakeTransport) Generate(ctx context.Context, _ domain.ModelRequest) (string, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if idx >= len(f.replies) {
		return f.replies[len(f.replies)-1].text, f.replies[len(f.replies)-1].err
	}
	return f.replies[idx].text, f.replies[idx].err
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newTestClient(t *testing.T, transport *fakeTransport, maxAttempts int, withCache bool) (*Client, *sleepRecorder) {
	t.Helper()
	cfg := resilience.DefaultConfig()
	cfg.Retry.MaxAttempts = maxAttempts
	cfg.BreakerEnabled = false
	sleeper := &sleepRecorder{}
	executor := resilience.NewExecutor(cfg).WithSleeper(sleeper.Sleep)

	var manager *cache.Manager
	if withCache {
		store, err := fsstore.New(t.TempDir())
		if err != nil {
			t.Fatalf("fsstore.New() error = %v", err)
		}
		manager = cache.NewManager(store, cache.Options{Enabled: true, TTL: time.Hour})
	}

	return NewClient(transport, Options{
		Cache:          manager,
		Executor:       executor,
		RequestTimeout: time.Second,
	}), sleeper
}

var classifySchema = domain.ResponseSchema{
	"type":     "object",
	"required": []any{"type", "confidence"},
	"properties": map[string]any{
		"type":       map[string]any{"type": "string"},
		"confidence": map[string]any{"type": "number"},
	},
}

func TestResolveRetriesThenSucceeds(t *testing.T) {
	transport := &fakeTransport{replies: []scriptedReply{
		{err: &HTTPStatusError{StatusCode: http.StatusServiceUnavailable, Status: "503"}},
		{err: &HTTPStatusError{StatusCode: http.StatusTooManyRequests, Status: "429"}},
		{text: `{"type":"invoice","confidence":0.9}`},
	}}
	client, sleeper := newTestClient(t, transport, 3, false)

	out, err := client.Resolve(context.Background(), domain.ModelRequest{Operation: "classify", Prompt: "p", Schema: classifySchema})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out["type"] != "invoice" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if transport.Calls() != 3 {
		t.Fatalf("expected 3 calls, got %d", transport.Calls())
	}
	if len(sleeper.waits) != 2 || sleeper.waits[0] != time.Second || sleeper.waits[1] != 2*time.Second {
		t.Fatalf("unexpected backoff waits: %v", sleeper.waits)
	}
}

func TestResolveExhaustionReturnsModelAPIError(t *testing.T) {
	transport := &fakeTransport{replies: []scriptedReply{
		{err: &HTTPStatusError{StatusCode: http.StatusBadGateway, Status: "502"}},
	}}
	client, sleeper := newTestClient(t, transport, 3, false)

	_, err := client.Resolve(context.Background(), domain.ModelRequest{Operation: "extract", Prompt: "p"})
	var apiErr *domain.ModelAPIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected ModelAPIError, got %v", err)
	}
	if apiErr.Attempts != 3 || !apiErr.Retryable {
		t.Fatalf("unexpected ModelAPIError: %+v", apiErr)
	}
	if transport.Calls() != 3 {
		t.Fatalf("expected 3 calls, got %d", transport.Calls())
	}
	if len(sleeper.waits) != 2 {
		t.Fatalf("expected 2 backoff waits, got %v", sleeper.waits)
	}
	if !domain.IsKind(err, domain.ErrModelAPI) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected model api + temporary kinds, got %v", err)
	}
}

func TestResolveCancelledDuringBackoffStaysRetryable(t *testing.T) {
	transport := &fakeTransport{replies: []scriptedReply{
		{err: &HTTPStatusError{StatusCode: http.StatusServiceUnavailable, Status: "503"}},
	}}
	cfg := resilience.DefaultConfig()
	cfg.Retry.MaxAttempts = 3
	cfg.BreakerEnabled = false
	executor := resilience.NewExecutor(cfg).WithSleeper(func(context.Context, time.Duration) error {
		return context.Canceled
	})
	client := NewClient(transport, Options{Executor: executor, RequestTimeout: time.Second})

	_, err := client.Resolve(context.Background(), domain.ModelRequest{Operation: "classify", Prompt: "p"})
	var apiErr *domain.ModelAPIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected ModelAPIError, got %v", err)
	}
	if !apiErr.Retryable || apiErr.Attempts != 1 {
		t.Fatalf("expected retryable error after 1 attempt, got %+v", apiErr)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation in error chain, got %v", err)
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected last transport error in chain, got %v", err)
	}
	if transport.Calls() != 1 {
		t.Fatalf("expected 1 call, got %d", transport.Calls())
	}
}

func TestResolveFatalStatusIsNotRetried(t *testing.T) {
	transport := &fakeTransport{replies: []scriptedReply{
		{err: &HTTPStatusError{StatusCode: http.StatusUnauthorized, Status: "401"}},
	}}
	client, _ := newTestClient(t, transport, 3, false)

	_, err := client.Resolve(context.Background(), domain.ModelRequest{Prompt: "p"})
	var apiErr *domain.ModelAPIError
	if !errors.As(err, &apiErr) || apiErr.Retryable || apiErr.Attempts != 1 {
		t.Fatalf("expected fatal ModelAPIError after one attempt, got %v", err)
	}
	if transport.Calls() != 1 {
		t.Fatalf("expected 1 call, got %d", transport.Calls())
	}
}

func TestResolveParseErrorIsNotRetried(t *testing.T) {
	transport := &fakeTransport{replies: []scriptedReply{{text: "I cannot answer that"}}}
	client, _ := newTestClient(t, transport, 3, true)

	_, err := client.Resolve(context.Background(), domain.ModelRequest{Prompt: "p"})
	var parseErr *domain.ResponseParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ResponseParseError, got %v", err)
	}
	if parseErr.Raw != "I cannot answer that" {
		t.Fatalf("expected raw text to be kept, got %q", parseErr.Raw)
	}
	if transport.Calls() != 1 {
		t.Fatalf("parse errors must not be retried, got %d calls", transport.Calls())
	}

	// Unparseable responses are never cached.
	_, _ = client.Resolve(context.Background(), domain.ModelRequest{Prompt: "p"})
	if transport.Calls() != 2 {
		t.Fatalf("expected a second live call, got %d", transport.Calls())
	}
}

func TestResolveSchemaViolationIsParseError(t *testing.T) {
	transport := &fakeTransport{replies: []scriptedReply{{text: `{"type":"invoice"}`}}}
	client, _ := newTestClient(t, transport, 3, false)

	_, err := client.Resolve(context.Background(), domain.ModelRequest{Prompt: "p", Schema: classifySchema})
	if !domain.IsKind(err, domain.ErrResponseParse) {
		t.Fatalf("expected response parse error, got %v", err)
	}
}

func TestResolveUsesCacheOnSecondCall(t *testing.T) {
	transport := &fakeTransport{replies: []scriptedReply{{text: "```json\n{\"type\":\"report\",\"confidence\":0.7}\n```"}}}
	client, _ := newTestClient(t, transport, 3, true)
	req := domain.ModelRequest{Operation: "classify", Prompt: "same prompt", Schema: classifySchema}

	first, err := client.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	second, err := client.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if transport.Calls() != 1 {
		t.Fatalf("expected one live call, got %d", transport.Calls())
	}
	if first["type"] != second["type"] || first["confidence"] != second["confidence"] {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
}

func TestResolveEmptyResponseIsRetried(t *testing.T) {
	transport := &fakeTransport{replies: []scriptedReply{
		{text: "   "},
		{text: `{"ok":true}`},
	}}
	client, _ := newTestClient(t, transport, 2, false)

	out, err := client.Resolve(context.Background(), domain.ModelRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out["ok"] != true || transport.Calls() != 2 {
		t.Fatalf("unexpected result %+v after %d calls", out, transport.Calls())
	}
}

func TestResolvePerAttemptTimeoutIsRetryable(t *testing.T) {
	transport := &fakeTransport{block: true}
	cfg := resilience.DefaultConfig()
	cfg.Retry.MaxAttempts = 2
	cfg.BreakerEnabled = false
	sleeper := &sleepRecorder{}
	client := NewClient(transport, Options{
		Executor:       resilience.NewExecutor(cfg).WithSleeper(sleeper.Sleep),
		RequestTimeout: 10 * time.Millisecond,
	})

	_, err := client.Resolve(context.Background(), domain.ModelRequest{Prompt: "p"})
	var apiErr *domain.ModelAPIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected ModelAPIError, got %v", err)
	}
	if apiErr.Attempts != 2 || !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("expected 2 timed-out attempts, got %+v", apiErr)
	}
}

func TestResolveParentCancellationStopsImmediately(t *testing.T) {
	transport := &fakeTransport{replies: []scriptedReply{{text: `{}`}}}
	client, _ := newTestClient(t, transport, 3, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Resolve(ctx, domain.ModelRequest{Prompt: "p"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if transport.Calls() != 0 {
		t.Fatalf("expected no calls after cancellation, got %d", transport.Calls())
	}
}

func TestCleanJSONFenceEquivalence(t *testing.T) {
	want := `{"a":1}`
	inputs := []string{
		`{"a":1}`,
		"```json\n{\"a\":1}\n```",
		"```\n{\"a\":1}\n```",
		"  ```json{\"a\":1}```  ",
		"Here you go: {\"a\":1} hope it helps",
	}
	for _, in := range inputs {
		if got := CleanJSON(in); got != want {
			t.Fatalf("CleanJSON(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "timeout", err: ErrRequestTimeout, retryable: true},
		{name: "empty", err: ErrEmptyResponse, retryable: true},
		{name: "canceled", err: context.Canceled, retryable: false},
		{name: "429", err: &HTTPStatusError{StatusCode: 429}, retryable: true},
		{name: "500", err: &HTTPStatusError{StatusCode: 500}, retryable: true},
		{name: "400", err: &HTTPStatusError{StatusCode: 400}, retryable: false},
		{name: "unknown", err: errors.New("boom"), retryable: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err).Retryable; got != tt.retryable {
				t.Fatalf("ClassifyError(%v).Retryable = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}
