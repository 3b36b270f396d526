// Package app is the composition root shared by the HTTP service and the terminal client.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/chunker"
	"github.com/kailas-cloud/pdfrag/internal/config"
	dbredis "github.com/kailas-cloud/pdfrag/internal/db/redis"
	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/extractor"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
	"github.com/kailas-cloud/pdfrag/internal/repository/embcache"
	openaiTransport "github.com/kailas-cloud/pdfrag/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/pdfrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/pdfrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/pdfrag/internal/usecase/ingest"
	retrievaluc "github.com/kailas-cloud/pdfrag/internal/usecase/retrieval"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore/memory"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore/qdrant"
	vsredis "github.com/kailas-cloud/pdfrag/internal/vectorstore/redis"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore/sqlite"
)

// App holds the wired pipelines.
type App struct {
	Config    config.Config
	Store     *vectorstore.Store
	Embedding *embeddinguc.Client
	Ingest    *ingestuc.Service
	Retrieval *retrievaluc.Service
	Health    *healthuc.Service

	logger  *zap.Logger
	closers []func()
}

// New connects to the vector store and assembles every component from cfg.
// Nothing touches collections until Initialize is called.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, logger: logger}

	kv, err := a.openBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	base := a.buildProvider(kv)
	a.Embedding, err = embeddinguc.New(base, cfg.VectorConfig(), logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("embedding client: %w", err)
	}

	ch, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.OverlapWords())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("chunker: %w", err)
	}

	generator := openaiTransport.NewGenerator(&openaiTransport.Config{
		APIKey:      cfg.Generation.APIKey,
		BaseURL:     cfg.Generation.BaseURL,
		Model:       cfg.Generation.Model,
		Timeout:     cfg.Generation.Timeout(),
		MaxRetries:  cfg.Generation.MaxRetries,
		Temperature: cfg.Generation.Temperature,
		Logger:      logger,
	})

	collection := cfg.VectorStore.Collection
	a.Ingest = ingestuc.New(extractor.NewPDF(), ch, a.Embedding, a.Store, collection)
	a.Retrieval = retrievaluc.New(a.Embedding, a.Store, generator, retrievaluc.Config{
		Collection: collection,
		DefaultK:   cfg.Retrieval.DefaultK,
		MaxK:       cfg.Retrieval.MaxK,
	})
	a.Health = healthuc.New(a.Store, a.Embedding)

	logger.Info("Pipelines ready",
		zap.String("vector_store", a.Store.Backend()),
		zap.String("collection", collection),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("generation_model", cfg.Generation.Model),
	)
	return a, nil
}

// Initialize creates the configured collection when absent and verifies its vector size.
func (a *App) Initialize(ctx context.Context) error {
	vs := a.Config.VectorStore
	if err := a.Store.EnsureCollection(ctx, vs.Collection, vs.Dimensions, domain.MetricCosine); err != nil {
		return fmt.Errorf("initialize collection %q: %w", vs.Collection, err)
	}
	return nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// openBackend sets a.Store. The returned redis store is non-nil only for redis/valkey drivers
// and doubles as the embedding cache.
func (a *App) openBackend(ctx context.Context) (*dbredis.Store, error) {
	vs := a.Config.VectorStore
	var (
		backend vectorstore.Backend
		kv      *dbredis.Store
	)

	switch vs.Driver {
	case config.DriverQdrant:
		backend = qdrant.New(qdrant.Config{URL: vs.URL, APIKey: vs.APIKey})
	case config.DriverRedis, config.DriverValkey:
		s, err := dbredis.NewStore(dbredis.Config{Addrs: vs.Addrs, Password: vs.Password})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", vs.Driver, err)
		}
		a.closers = append(a.closers, s.Close)
		if err := s.WaitForReady(ctx, time.Duration(vs.ReadinessTimeout)*time.Second); err != nil {
			return nil, fmt.Errorf("%s not ready: %w", vs.Driver, err)
		}
		a.logger.Info("Connected to database", zap.String("driver", vs.Driver), zap.Strings("addrs", vs.Addrs))
		backend = vsredis.New(s, vs.Driver)
		kv = s
	case config.DriverSQLite:
		b, err := sqlite.Open(ctx, vs.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := b.Close(); err != nil {
				a.logger.Warn("Failed to close sqlite", zap.Error(err))
			}
		})
		backend = b
	case config.DriverMemory:
		backend = memory.New()
	default:
		return nil, domain.ConfigError("unknown vector store driver %q", vs.Driver)
	}

	a.Store = vectorstore.New(backend, vectorstore.Config{
		BatchSize: vs.BatchSize,
		Timeout:   vs.Timeout(),
	})
	return kv, nil
}

// buildProvider assembles the provider chain: OpenAI-compatible client -> optional cache.
// Instruction prefixes are applied by the embedding client on top, so they are part of cache keys.
func (a *App) buildProvider(kv *dbredis.Store) domain.Embedder {
	e := a.Config.Embedding
	var provider domain.Embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     e.APIKey,
		BaseURL:    e.BaseURL,
		Model:      e.Model,
		Dimensions: e.Dimensions,
		Timeout:    e.Timeout(),
		MaxRetries: e.MaxRetries,
		Logger:     a.logger,
	})

	if e.Cache.Enabled && kv != nil {
		provider = embcache.New(provider, kv, embcache.Config{
			Model:      e.Model,
			Dimensions: e.Dimensions,
			TTL:        time.Duration(e.Cache.TTLHours) * time.Hour,
			CacheTotal: metrics.EmbeddingCacheTotal,
			Logger:     a.logger,
		})
		a.logger.Info("Embedding cache enabled", zap.Int("ttl_hours", e.Cache.TTLHours))
	}
	return provider
}
