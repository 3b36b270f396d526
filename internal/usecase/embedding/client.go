// Package embedding turns texts into vectors with the right intent, batching under the
// provider's per-call item cap.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
)

// Client embeds queries and documents through separate instruction decorators.
type Client struct {
	query     *domain.InstructionEmbedder
	document  *domain.InstructionEmbedder
	health    domain.Embedder
	model     string
	dims      int
	batchSize int
	logger    *zap.Logger
}

// New validates cfg and wraps base with the query and document instructions.
func New(base domain.Embedder, cfg domain.VectorConfig, logger *zap.Logger) (*Client, error) {
	if base == nil {
		return nil, domain.ConfigError("embedding provider is required")
	}
	if cfg.BatchSize <= 0 {
		return nil, domain.ConfigError("embedding batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.MaxBatchItems > 0 && cfg.BatchSize > cfg.MaxBatchItems {
		return nil, domain.ConfigError("embedding batch size %d exceeds provider limit %d",
			cfg.BatchSize, cfg.MaxBatchItems)
	}
	if cfg.QueryInstruction == cfg.DocumentInstruction {
		return nil, domain.ConfigError("query and document instructions must differ")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		query:     domain.NewInstructionEmbedder(base, domain.IntentQuery, cfg.QueryInstruction),
		document:  domain.NewInstructionEmbedder(base, domain.IntentDocument, cfg.DocumentInstruction),
		health:    base,
		model:     cfg.Model,
		dims:      cfg.Dimensions,
		batchSize: cfg.BatchSize,
		logger:    logger,
	}, nil
}

// Dimensions returns the configured vector size; 0 disables the check.
func (c *Client) Dimensions() int { return c.dims }

// EmbedQuery embeds a single user question.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	res, err := c.query.Embed(ctx, text)
	c.observe(domain.IntentQuery, start, res.TotalTokens, err)
	if err != nil {
		c.logger.Error("Query embedding failed", zap.String("model", c.model), zap.Error(err))
		return nil, fmt.Errorf("embed query: %w", err)
	}
	usage(ctx).AddTokens(res.TotalTokens)

	if err := c.checkDim(res.Embedding, 0); err != nil {
		return nil, err
	}
	return res.Embedding, nil
}

// EmbedDocuments embeds texts in sequential batches of at most the configured batch size.
// The output has exactly one vector per input, in input order.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for offset := 0; offset < len(texts); offset += c.batchSize {
		end := min(offset+c.batchSize, len(texts))
		batch := texts[offset:end]

		start := time.Now()
		res, err := c.document.BatchEmbed(ctx, batch)
		c.observe(domain.IntentDocument, start, res.TotalTokens, err)
		if err != nil {
			c.logger.Error("Document batch embedding failed",
				zap.String("model", c.model),
				zap.Int("batch_offset", offset),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			return nil, fmt.Errorf("embed documents [%d:%d]: %w", offset, end, err)
		}
		if len(res.Embeddings) != len(batch) {
			return nil, fmt.Errorf("embed documents [%d:%d]: got %d vectors for %d texts: %w",
				offset, end, len(res.Embeddings), len(batch), domain.ErrCountMismatch)
		}
		for i, v := range res.Embeddings {
			if err := c.checkDim(v, offset+i); err != nil {
				return nil, err
			}
		}
		usage(ctx).AddTokens(res.TotalTokens)
		out = append(out, res.Embeddings...)

		c.logger.Debug("Embedded document batch",
			zap.Int("batch_offset", offset),
			zap.Int("batch_size", len(batch)),
			zap.Int("total_tokens", res.TotalTokens),
		)
	}

	if len(out) != len(texts) {
		return nil, fmt.Errorf("got %d vectors for %d texts: %w", len(out), len(texts), domain.ErrCountMismatch)
	}
	return out, nil
}

// HealthCheck forwards to the provider when it supports health checks.
func (c *Client) HealthCheck(ctx context.Context) error {
	if hc, ok := c.health.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *Client) checkDim(v []float32, index int) error {
	if c.dims > 0 && len(v) != c.dims {
		return fmt.Errorf("embedding %d has %d dimensions, expected %d: %w",
			index, len(v), c.dims, domain.ErrVectorDimMismatch)
	}
	return nil
}

func (c *Client) observe(intent domain.Intent, start time.Time, tokens int, err error) {
	metrics.EmbeddingRequestDuration.WithLabelValues(c.model, string(intent)).Observe(time.Since(start).Seconds())
	metrics.EmbeddingRequestsTotal.WithLabelValues(c.model, string(intent), metrics.StatusOf(err)).Inc()
	if err == nil && tokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(c.model, string(intent)).Add(float64(tokens))
	}
}

func usage(ctx context.Context) *domain.EmbeddingUsage { return domain.UsageFromContext(ctx) }
