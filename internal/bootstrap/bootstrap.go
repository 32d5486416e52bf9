package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kirillkom/domain-router/internal/config"
	"github.com/kirillkom/domain-router/internal/core/domain"
	"github.com/kirillkom/domain-router/internal/core/ports"
	"github.com/kirillkom/domain-router/internal/core/usecase"
	"github.com/kirillkom/domain-router/internal/infrastructure/chunking"
	"github.com/kirillkom/domain-router/internal/infrastructure/extractor"
	"github.com/kirillkom/domain-router/internal/infrastructure/extractor/htmltext"
	"github.com/kirillkom/domain-router/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/domain-router/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/domain-router/internal/infrastructure/extractor/spreadsheet"
	"github.com/kirillkom/domain-router/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/domain-router/internal/infrastructure/queue/nats"
	"github.com/kirillkom/domain-router/internal/infrastructure/repository/memory"
	"github.com/kirillkom/domain-router/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/domain-router/internal/infrastructure/resilience"
	"github.com/kirillkom/domain-router/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/domain-router/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/domain-router/internal/observability/metrics"
)

// App holds the query-serving graph used by the API and MCP entrypoints.
type App struct {
	Config      config.Config
	Catalog     []domain.DomainDescriptor
	Collections *domain.Collections

	Classifier ports.QueryClassifier
	Searcher   ports.KnowledgeSearcher
	QueryUC    *usecase.QueryUseCase
	ChatUC     *usecase.ChatUseCase

	// Nil unless ingestion is enabled.
	UploadUC *usecase.UploadSourceUseCase
	Sources  ports.SourceRepository

	closers []func()
}

// Worker holds the ingestion graph used by the worker entrypoint.
type Worker struct {
	Config    config.Config
	Queue     *nats.Queue
	ProcessUC *usecase.ProcessSourceUseCase

	closers []func()
}

// New builds every domain collection before returning, so a returned App
// serves immutable collections for its whole lifetime.
func New(ctx context.Context, cfg config.Config, m *metrics.HTTPServerMetrics) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	catalog, err := config.LoadCatalog(cfg.DomainsConfig)
	if err != nil {
		return nil, err
	}

	var observer resilience.Observer
	if m != nil {
		observer = m
	}
	executor := newExecutor(cfg, observer)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	app.closers = append(app.closers, func() { _ = storage.Close() })
	cache, err := newChunkCache(cfg, executor)
	if err != nil {
		return nil, err
	}

	ollamaClient := newOllamaClient(cfg, executor)
	embedder, err := ollama.NewEmbedder(ctx, ollamaClient, ollama.EmbedderOptions{
		BatchSize:     cfg.EmbedBatchSize,
		QueryPrefix:   cfg.EmbedQueryPrefix,
		PassagePrefix: cfg.EmbedPassagePrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	generator, err := ollama.NewGenerator(ctx, ollamaClient, ollama.GeneratorOptions{
		MaxTokens:   cfg.GenerationMaxTokens,
		Temperature: cfg.GenerationTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("init generator: %w", err)
	}

	var db *sql.DB
	if cfg.IngestionEnabled || cfg.ConversationBackend == config.BackendPostgres {
		db, err = openPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
	}

	var sources ports.SourceRepository
	if cfg.IngestionEnabled {
		sources = postgres.NewSourceRepository(db)
	}

	builder := usecase.NewCollectionBuilder(
		newExtractor(storage),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		cache,
		sources,
		cfg.BuildConcurrency,
	)
	collections, err := builder.LoadCollections(ctx, catalog)
	if err != nil {
		return nil, fmt.Errorf("load collections: %w", err)
	}

	baseClassifier, err := usecase.NewDomainClassifier(ctx, embedder, catalog, usecase.ClassifierOptions{
		OverrideConfidence: cfg.ClassifierOverrideConfidence,
	})
	if err != nil {
		return nil, fmt.Errorf("init classifier: %w", err)
	}
	var classifier ports.QueryClassifier = baseClassifier
	if m != nil {
		classifier = observedClassifier{next: baseClassifier, record: m.RecordClassification}
	}

	searcher := usecase.NewHybridSearchEngine(embedder, collections, usecase.SearchOptions{
		SemanticWeight: cfg.RAGSemanticWeight,
		KeywordWeight:  cfg.RAGKeywordWeight,
		ScoreThreshold: cfg.RAGScoreThreshold,
		DefaultTopK:    cfg.RAGTopK,
	})
	queryUC := usecase.NewQueryUseCase(classifier, searcher, generator, usecase.QueryOptions{
		TopK:              cfg.RAGTopK,
		GeneralTopK:       cfg.RAGGeneralTopK,
		RelevanceFloor:    cfg.RAGRelevanceFloor,
		ContextPassages:   cfg.RAGContextPassages,
		GenerationTimeout: cfg.GenerationTimeout,
	})

	var conversations ports.ConversationStore
	switch cfg.ConversationBackend {
	case config.BackendPostgres:
		conversations = postgres.NewConversationRepository(db)
	case config.BackendMemory, "":
		conversations = memory.NewConversationStore()
	default:
		return nil, fmt.Errorf("unknown conversation backend %q", cfg.ConversationBackend)
	}
	chatUC, err := usecase.NewChatUseCase(classifier, conversations, usecase.DefaultAgents(queryUC))
	if err != nil {
		return nil, fmt.Errorf("init chat: %w", err)
	}

	if cfg.IngestionEnabled {
		queue, err := newQueue(cfg, executor)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, queue.Close)
		app.UploadUC = usecase.NewUploadSourceUseCase(sources, storage, queue, config.DomainNames(catalog))
		app.Sources = sources
	}

	app.Catalog = baseClassifier.Domains()
	app.Collections = collections
	app.Classifier = classifier
	app.Searcher = searcher
	app.QueryUC = queryUC
	app.ChatUC = chatUC
	ok = true
	return app, nil
}

// NewWorker wires the ingestion pipeline. Postgres and NATS are required.
func NewWorker(ctx context.Context, cfg config.Config, m *metrics.WorkerMetrics) (*Worker, error) {
	w := &Worker{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			w.Close()
		}
	}()

	var observer resilience.Observer
	if m != nil {
		observer = m
	}
	executor := newExecutor(cfg, observer)

	db, err := openPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	w.closers = append(w.closers, func() { _ = db.Close() })
	repo := postgres.NewSourceRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	w.closers = append(w.closers, func() { _ = storage.Close() })
	cache, err := newChunkCache(cfg, executor)
	if err != nil {
		return nil, err
	}

	embedder, err := ollama.NewEmbedder(ctx, newOllamaClient(cfg, executor), ollama.EmbedderOptions{
		BatchSize:     cfg.EmbedBatchSize,
		QueryPrefix:   cfg.EmbedQueryPrefix,
		PassagePrefix: cfg.EmbedPassagePrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	queue, err := newQueue(cfg, executor)
	if err != nil {
		return nil, err
	}
	w.closers = append(w.closers, queue.Close)

	builder := usecase.NewCollectionBuilder(
		newExtractor(storage),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		cache,
		repo,
		cfg.BuildConcurrency,
	)

	w.Queue = queue
	w.ProcessUC = usecase.NewProcessSourceUseCase(repo, builder)
	ok = true
	return w, nil
}

func (a *App) Close() {
	closeAll(a.closers)
	a.closers = nil
}

func (w *Worker) Close() {
	closeAll(w.closers)
	w.closers = nil
}

func closeAll(closers []func()) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

func newExecutor(cfg config.Config, observer resilience.Observer) *resilience.Executor {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.RetryMaxAttempts
	rc.RetryInitialBackoff = cfg.RetryInitialBackoff
	rc.BreakerEnabled = cfg.BreakerEnabled
	rc.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	if observer == nil {
		return resilience.NewExecutor(rc)
	}
	return resilience.NewExecutor(rc, resilience.WithObserver(observer))
}

func newOllamaClient(cfg config.Config, executor *resilience.Executor) *ollama.Client {
	return ollama.New(ollama.Options{
		BaseURL:         cfg.OllamaURL,
		GenerationModel: cfg.OllamaGenModel,
		EmbeddingModel:  cfg.OllamaEmbedModel,
		Timeout:         cfg.OllamaTimeout,
		Executor:        executor,
	})
}

func newChunkCache(cfg config.Config, executor *resilience.Executor) (ports.ChunkRepository, error) {
	switch cfg.ChunkBackend {
	case config.BackendQdrant:
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.WithExecutor(executor)), nil
	case config.BackendLocalFS, "":
		cache, err := localfs.NewChunkCache(cfg.ChunkCacheDir)
		if err != nil {
			return nil, fmt.Errorf("init chunk cache: %w", err)
		}
		return cache, nil
	default:
		return nil, fmt.Errorf("unknown chunk backend %q", cfg.ChunkBackend)
	}
}

func newExtractor(storage ports.ObjectStorage) *extractor.Router {
	text := plaintext.New()
	html := htmltext.New()
	return extractor.NewRouter(storage, map[string]extractor.Parser{
		".txt":  text,
		".md":   text,
		".pdf":  pdf.New(),
		".xlsx": spreadsheet.New(),
		".html": html,
		".htm":  html,
	})
}

func newQueue(cfg config.Config, executor *resilience.Executor) (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	return queue, nil
}

func openPostgres(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

// MetricsServer serves a registry handler on its own port.
func MetricsServer(port string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{Addr: ":" + port, Handler: mux}
}

type observedClassifier struct {
	next   ports.QueryClassifier
	record func(domain.ClassificationResult)
}

func (c observedClassifier) Classify(ctx context.Context, query string) (domain.ClassificationResult, error) {
	res, err := c.next.Classify(ctx, query)
	if err == nil {
		c.record(res)
		slog.Debug("query_classified", "domain", res.Domain, "route", res.Route, "confidence", res.Confidence)
	}
	return res, err
}
