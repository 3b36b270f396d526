package pdfrag

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/chunker"
	dbRedis "github.com/kailas-cloud/pdfrag/internal/db/redis"
	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/extractor"
	openaiTransport "github.com/kailas-cloud/pdfrag/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/pdfrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/pdfrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/pdfrag/internal/usecase/ingest"
	retrievaluc "github.com/kailas-cloud/pdfrag/internal/usecase/retrieval"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore/memory"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore/qdrant"
	vsRedis "github.com/kailas-cloud/pdfrag/internal/vectorstore/redis"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore/sqlite"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultCollection       = "pdf_chunks"
	defaultGenerationModel  = "gemini-2.5-flash"
)

// Internal interfaces, swapped out in tests.
type ingestUseCase interface {
	IngestFile(ctx context.Context, path, source string) (ingestuc.Result, error)
	IngestBytes(ctx context.Context, data []byte, source string) (ingestuc.Result, error)
}

type retrievalUseCase interface {
	Search(ctx context.Context, query string, k int) (domain.Answer, error)
}

// Client is the pdfrag SDK entry point.
type Client struct {
	store     *vectorstore.Store
	ingestSvc ingestUseCase
	askSvc    retrievalUseCase
	healthSvc healthUseCase
	obs       *observer
	closers   []func()
}

// New creates a Client, connects to the vector store and creates the collection when absent.
// The provided context bounds the connection and collection setup.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	vec := domain.DefaultVectorConfig()
	cfg := &clientConfig{
		driver:              "memory",
		collection:          defaultCollection,
		vectorDimensions:    vec.Dimensions,
		batchSize:           vec.BatchSize,
		chunkSize:           400,
		chunkOverlap:        50,
		defaultK:            retrievaluc.DefaultK,
		maxK:                retrievaluc.MaxK,
		queryInstruction:    vec.QueryInstruction,
		documentInstruction: vec.DocumentInstruction,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	embedder, generator, err := resolveModels(cfg)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := &Client{obs: obs}
	backend, err := c.createBackend(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.store = vectorstore.New(backend, vectorstore.Config{BatchSize: cfg.batchSize})

	if err := c.wire(ctx, cfg, embedder, generator); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func resolveModels(cfg *clientConfig) (domain.Embedder, domain.Generator, error) {
	var (
		embedder  domain.Embedder
		generator domain.Generator
	)
	if cfg.embedder != nil {
		embedder = &embedderAdapter{inner: cfg.embedder}
	}
	if cfg.generator != nil {
		generator = &generatorAdapter{inner: cfg.generator}
	}

	if o := cfg.openai; o != nil {
		if embedder == nil {
			model := o.embeddingModel
			if model == "" {
				model = domain.DefaultVectorConfig().Model
			}
			embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
				APIKey:     o.apiKey,
				BaseURL:    o.baseURL,
				Model:      model,
				Dimensions: cfg.vectorDimensions,
				MaxRetries: 3,
			})
		}
		if generator == nil {
			model := o.generationModel
			if model == "" {
				model = defaultGenerationModel
			}
			generator = openaiTransport.NewGenerator(&openaiTransport.Config{
				APIKey:     o.apiKey,
				BaseURL:    o.baseURL,
				Model:      model,
				MaxRetries: 3,
			})
		}
	}

	if embedder == nil {
		return nil, nil, domain.ConfigError("pdfrag: embedder not configured (use WithEmbedder or WithOpenAI)")
	}
	if generator == nil {
		return nil, nil, domain.ConfigError("pdfrag: generator not configured (use WithGenerator or WithOpenAI)")
	}
	return embedder, generator, nil
}

func (c *Client) createBackend(ctx context.Context, cfg *clientConfig) (vectorstore.Backend, error) {
	switch cfg.driver {
	case "qdrant":
		if cfg.url == "" {
			return nil, domain.ConfigError("pdfrag: qdrant url required")
		}
		return qdrant.New(qdrant.Config{URL: cfg.url, APIKey: cfg.apiKey}), nil
	case "redis", "valkey":
		s, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password})
		if err != nil {
			return nil, fmt.Errorf("pdfrag: create %s store: %w", cfg.driver, err)
		}
		c.closers = append(c.closers, s.Close)
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			return nil, fmt.Errorf("pdfrag: database not ready: %w", err)
		}
		return vsRedis.New(s, cfg.driver), nil
	case "sqlite":
		b, err := sqlite.Open(ctx, cfg.path)
		if err != nil {
			return nil, fmt.Errorf("pdfrag: %w", err)
		}
		c.closers = append(c.closers, func() { _ = b.Close() })
		return b, nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, domain.ConfigError("pdfrag: unknown driver %q", cfg.driver)
	}
}

func (c *Client) wire(ctx context.Context, cfg *clientConfig, embedder domain.Embedder, generator domain.Generator) error {
	vc := domain.VectorConfig{
		Dimensions:          cfg.vectorDimensions,
		DistanceMetric:      domain.MetricCosine,
		DocumentInstruction: cfg.documentInstruction,
		QueryInstruction:    cfg.queryInstruction,
		BatchSize:           cfg.batchSize,
		MaxBatchItems:       domain.DefaultVectorConfig().MaxBatchItems,
	}
	emb, err := embeddinguc.New(embedder, vc, zap.NewNop())
	if err != nil {
		return fmt.Errorf("pdfrag: %w", err)
	}
	ch, err := chunker.New(cfg.chunkSize, cfg.chunkOverlap)
	if err != nil {
		return fmt.Errorf("pdfrag: %w", err)
	}

	if err := c.store.EnsureCollection(ctx, cfg.collection, cfg.vectorDimensions, domain.MetricCosine); err != nil {
		return fmt.Errorf("pdfrag: %w", err)
	}

	c.ingestSvc = ingestuc.New(extractor.NewPDF(), ch, emb, c.store, cfg.collection)
	c.askSvc = retrievaluc.New(emb, c.store, generator, retrievaluc.Config{
		Collection: cfg.collection,
		DefaultK:   cfg.defaultK,
		MaxK:       cfg.maxK,
	})
	c.healthSvc = healthuc.New(c.store, emb)
	return nil
}

// Close releases all resources.
func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Ping checks vector store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// IngestFile extracts, chunks, embeds and stores the PDF at path.
// Re-ingesting the same document overwrites its chunks.
func (c *Client) IngestFile(ctx context.Context, path string) (res IngestResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err, "source", path, "chunks", res.Chunks) }()

	r, err := c.ingestSvc.IngestFile(ctx, path, filepath.Base(path))
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest %s: %w", path, err)
	}
	return IngestResult{DocumentID: r.DocumentID, Chunks: r.ChunksUploaded}, nil
}

// IngestBytes is IngestFile for an in-memory PDF. source names it in chunk payloads.
func (c *Client) IngestBytes(ctx context.Context, data []byte, source string) (res IngestResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err, "source", source, "chunks", res.Chunks) }()

	r, err := c.ingestSvc.IngestBytes(ctx, data, source)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest %s: %w", source, err)
	}
	return IngestResult{DocumentID: r.DocumentID, Chunks: r.ChunksUploaded}, nil
}

// Ask answers question from the k most similar chunks. k <= 0 uses the default.
// Questions with no matching chunks get a fixed reply rather than an error.
func (c *Client) Ask(ctx context.Context, question string, k int) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err, "chunks", len(ans.Chunks)) }()

	a, err := c.askSvc.Search(ctx, question, k)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return Answer{Text: a.Answer, Chunks: a.ChunksUsed}, nil
}
