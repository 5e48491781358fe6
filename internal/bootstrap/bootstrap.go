package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/kirillkom/document-intelligence/internal/catalog"
	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
	"github.com/kirillkom/document-intelligence/internal/core/usecase"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/cache"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/cache/fsstore"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/cache/redisstore"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/cache/sqlitestore"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/extractor"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/llm"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/llm/openaicompat"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/repository/memory"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/resilience"
	"github.com/kirillkom/document-intelligence/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/document-intelligence/internal/observability/metrics"
)

type Options struct {
	Service string
	Logger  *slog.Logger
	// Registerer receives pipeline metrics; nil disables them.
	Registerer prometheus.Registerer
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Cache     *cache.Manager
	Store     ports.ResultStore
	Documents *usecase.DocumentService

	Queue     *nats.Queue
	Ingestor  *usecase.IngestDocumentUseCase
	Processor *usecase.AnalyzeJobProcessor

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}

	var pipelineMetrics *metrics.PipelineMetrics
	if opts.Registerer != nil {
		pipelineMetrics = metrics.NewPipelineMetrics(opts.Service, opts.Registerer)
	}

	types, err := catalog.Load(cfg.DocumentTypesPath)
	if err != nil {
		return nil, fmt.Errorf("load document types: %w", err)
	}

	cacheOpts := cache.Options{Enabled: cfg.CacheEnabled, TTL: cfg.CacheTTL, Logger: logger}
	if pipelineMetrics != nil {
		cacheOpts.Observer = pipelineMetrics
	}
	responseCache, err := NewCache(ctx, cfg, cacheOpts)
	if err != nil {
		return nil, err
	}
	app.Cache = responseCache
	app.onClose(func() { _ = responseCache.Close() })

	transport, err := NewTransport(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	clientOpts := llm.Options{
		Cache:          responseCache,
		Executor:       NewExecutor(cfg, logger),
		RequestTimeout: cfg.LLMRequestTimeout,
		Logger:         logger,
	}
	if cfg.LLMRateLimitRPS > 0 {
		clientOpts.Limiter = rate.NewLimiter(rate.Limit(cfg.LLMRateLimitRPS), 1)
	}
	if pipelineMetrics != nil {
		clientOpts.Observer = pipelineMetrics
	}
	model := llm.NewClient(transport, clientOpts)

	store, err := app.newResultStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store
	if counter, ok := store.(ports.ResultCounter); ok && opts.Registerer != nil {
		if err := opts.Registerer.Register(metrics.NewResultsCollector(opts.Service, counter, logger)); err != nil {
			app.Close()
			return nil, fmt.Errorf("register result metrics: %w", err)
		}
	}

	serviceOpts := usecase.Options{
		ConfidenceFloor:    cfg.ClassificationConfidenceFloor,
		DiscoveryMaxFields: cfg.DiscoveryMaxFields,
		Params: domain.ModelParams{
			Model:           cfg.LLMModel,
			Temperature:     cfg.LLMTemperature,
			MaxOutputTokens: cfg.LLMMaxTokens,
		},
		Logger: logger,
	}
	if pipelineMetrics != nil {
		serviceOpts.Observer = pipelineMetrics
	}
	app.Documents = usecase.NewDocumentService(extractor.New(), model, store, types, serviceOpts)

	logger.Info("bootstrap.ready",
		"llm_provider", cfg.LLMProvider,
		"model", cfg.LLMModel,
		"cache_backend", cfg.CacheBackend,
		"cache_enabled", responseCache.Enabled(),
		"result_store", cfg.ResultStore,
		"document_types", len(types.Types),
	)
	return app, nil
}

// EnableQueue wires local object storage and NATS for asynchronous processing.
func (a *App) EnableQueue() error {
	storage, err := localfs.New(a.Config.StoragePath)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}
	queue, err := nats.NewWithOptions(a.Config.NATSURL, a.Config.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()).WithLogger(a.Logger),
		Logger:             a.Logger,
	})
	if err != nil {
		return fmt.Errorf("init message queue: %w", err)
	}
	a.onClose(queue.Close)

	a.Queue = queue
	a.Ingestor = usecase.NewIngestDocumentUseCase(storage, queue)
	a.Processor = usecase.NewAnalyzeJobProcessor(a.Documents, storage, a.Logger)
	return nil
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

func (a *App) newResultStore(ctx context.Context, cfg config.Config) (ports.ResultStore, error) {
	switch strings.ToLower(cfg.ResultStore) {
	case "", "memory":
		return memory.NewResultStore(), nil
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.onClose(func() { _ = db.Close() })
		repo := postgres.NewResultRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown RESULT_STORE %q", cfg.ResultStore)
	}
}

// NewCache opens the configured cache backend and prunes expired entries.
func NewCache(ctx context.Context, cfg config.Config, opts cache.Options) (*cache.Manager, error) {
	store, err := newCacheStore(cfg)
	if err != nil {
		return nil, err
	}
	manager := cache.NewManager(store, opts)
	if manager.Enabled() {
		if _, err := manager.Prune(ctx); err != nil {
			_ = manager.Close()
			return nil, fmt.Errorf("prune response cache: %w", err)
		}
	}
	return manager, nil
}

func newCacheStore(cfg config.Config) (cache.Store, error) {
	switch strings.ToLower(cfg.CacheBackend) {
	case "", "fs":
		store, err := fsstore.New(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("open fs cache: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := sqlitestore.New(cfg.CacheSQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		return store, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return redisstore.New(client, ""), nil
	default:
		return nil, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
	}
}

func NewTransport(cfg config.Config) (ports.ModelTransport, error) {
	switch strings.ToLower(cfg.LLMProvider) {
	case "", "ollama":
		return ollama.New(cfg.OllamaURL, cfg.LLMModel), nil
	case "openai", "openai-compatible":
		if strings.TrimSpace(cfg.LLMAPIKey) == "" {
			return nil, fmt.Errorf("LLM_API_KEY is required for provider %q", cfg.LLMProvider)
		}
		return openaicompat.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func NewExecutor(cfg config.Config, logger *slog.Logger) *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		Retry: resilience.Policy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BackoffBase: cfg.RetryBackoffBase,
			BackoffUnit: cfg.RetryBackoffUnit,
			MaxBackoff:  cfg.RetryMaxBackoff,
		},
		BreakerEnabled: cfg.BreakerEnabled,
	}).WithLogger(logger)
}
