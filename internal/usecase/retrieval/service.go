// Package retrieval answers questions from stored chunks with a generative model.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/logger"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
)

// Default result limits.
const (
	DefaultK = 5
	MaxK     = 50
)

// Outcome labels for metrics.
const (
	OutcomeAnswered    = "answered"
	OutcomeNoResults   = "no_results"
	OutcomeUnreadable  = "unreadable"
	OutcomeSearchError = "search_error"
)

// Config holds Service settings.
type Config struct {
	Collection string
	DefaultK   int // used when the caller passes k <= 0
	MaxK       int // upper bound for k
}

// Service runs embed query → nearest neighbors → context → generate.
type Service struct {
	embedder  QueryEmbedder
	searcher  Searcher
	generator domain.Generator
	cfg       Config
}

// New creates a retrieval Service.
func New(embedder QueryEmbedder, searcher Searcher, generator domain.Generator, cfg Config) *Service {
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = DefaultK
	}
	if cfg.MaxK <= 0 {
		cfg.MaxK = MaxK
	}
	cfg.DefaultK = min(cfg.DefaultK, cfg.MaxK)
	return &Service{embedder: embedder, searcher: searcher, generator: generator, cfg: cfg}
}

// Search answers query from the k most similar chunks.
//
// A vector store failure is answered with domain.AnswerSearchError rather than an error.
// Cancellation, embedding and generation failures are returned.
// A blank completion is answered with domain.AnswerFallback.
func (s *Service) Search(ctx context.Context, query string, k int) (domain.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Answer{}, fmt.Errorf("query is empty: %w", domain.ErrInvalidInput)
	}
	k = s.limit(k)
	log := logger.FromContext(ctx).With(zap.Int("k", k))

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("search: %w", err)
	}

	matches, err := s.searcher.Query(ctx, s.cfg.Collection, vector, k)
	if errors.Is(err, domain.ErrCanceled) {
		return domain.Answer{}, fmt.Errorf("search: %w", err)
	}
	if err != nil {
		log.Error("Vector search failed", zap.Error(err))
		return s.reply(OutcomeSearchError, domain.AnswerSearchError), nil
	}
	if len(matches) == 0 {
		return s.reply(OutcomeNoResults, domain.AnswerNoResults), nil
	}

	chunks := make([]string, 0, len(matches))
	for _, m := range matches {
		if text := m.Payload.Text(); strings.TrimSpace(text) != "" {
			chunks = append(chunks, text)
		}
	}
	if len(chunks) == 0 {
		log.Warn("Matches carry no readable text", zap.Int("matches", len(matches)))
		return s.reply(OutcomeUnreadable, domain.AnswerUnreadable), nil
	}

	answer, err := s.generator.Generate(ctx, BuildPrompt(query, chunks))
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		log.Warn("Generator returned an empty answer")
		answer = domain.AnswerFallback
	}

	log.Info("Query answered", zap.Int("matches", len(matches)), zap.Int("chunks_used", len(chunks)))
	metrics.RetrievalOutcomesTotal.WithLabelValues(OutcomeAnswered).Inc()
	return domain.Answer{Answer: answer, ChunksUsed: chunks}, nil
}

// limit clamps k to [1, MaxK]; k <= 0 selects DefaultK.
func (s *Service) limit(k int) int {
	if k <= 0 {
		return s.cfg.DefaultK
	}
	return min(k, s.cfg.MaxK)
}

func (s *Service) reply(outcome, message string) domain.Answer {
	metrics.RetrievalOutcomesTotal.WithLabelValues(outcome).Inc()
	return domain.Answer{Answer: message, ChunksUsed: []string{}}
}
