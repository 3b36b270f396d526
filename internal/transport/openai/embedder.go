// Package openai adapts OpenAI-compatible endpoints (Gemini, OpenAI, Nebius, Ollama)
// to the embedding and generation contracts.
package openai

import (
	"context"
	"fmt"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
)

// Embedder is an embedding provider using the OpenAI-compatible API.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	timeout    time.Duration
	maxRetries int
	retryBase  time.Duration
	logger     *zap.Logger
}

// Config holds the provider settings shared by Embedder and Generator.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int // embeddings only; 0 = provider default
	User       string
	Timeout    time.Duration
	MaxRetries int
	// RetryBaseDelay is the first backoff step; doubles per retry. 0 = 200ms.
	RetryBaseDelay time.Duration
	Temperature    float32 // generation only
	Logger         *zap.Logger
}

func newClient(cfg *Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	return openai.NewClientWithConfig(clientCfg)
}

func (cfg *Config) retryBase() time.Duration {
	if cfg.RetryBaseDelay > 0 {
		return cfg.RetryBaseDelay
	}
	return defaultRetryBase
}

func (cfg *Config) logger() *zap.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return zap.NewNop()
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	return &Embedder{
		client:     newClient(cfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.retryBase(),
		logger:     cfg.logger(),
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder with a single API call.
// Vectors are returned in input order; a response with a different count is an integration error.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var resp openai.EmbeddingResponse
	err := withRetry(ctx, e.maxRetries, e.retryBase, func(ctx context.Context) error {
		var callErr error
		resp, callErr = e.client.CreateEmbeddings(ctx, req)
		if callErr != nil && retryable(callErr) {
			e.logger.Warn("Embedding request failed, retrying",
				zap.String("model", string(e.model)), zap.Error(callErr))
		}
		return callErr //nolint:wrapcheck // wrapped below
	})
	if err != nil {
		e.countError(ctx, "api_error")
		return domain.BatchEmbeddingResult{}, domain.WrapRemote(
			ctx, domain.ErrEmbeddingProvider, describe("create embeddings", err), err)
	}

	if len(resp.Data) != len(texts) {
		e.countError(ctx, "count_mismatch")
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"embedding response has %d vectors for %d inputs: %w",
			len(resp.Data), len(texts), domain.ErrCountMismatch)
	}

	sort.Slice(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})

	embeddings := make([][]float32, len(resp.Data))
	for i := range resp.Data {
		if len(resp.Data[i].Embedding) == 0 {
			e.countError(ctx, "empty_vector")
			return domain.BatchEmbeddingResult{}, fmt.Errorf(
				"empty embedding at index %d: %w", i, domain.ErrEmbeddingProvider)
		}
		embeddings[i] = resp.Data[i].Embedding
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return domain.WrapRemote(ctx, domain.ErrEmbeddingProvider, describe("list models", err), err)
	}
	return nil
}

func (e *Embedder) countError(ctx context.Context, kind string) {
	if ctx.Err() != nil {
		kind = "canceled"
	}
	metrics.EmbeddingErrorsTotal.WithLabelValues(string(e.model), kind).Inc()
}
