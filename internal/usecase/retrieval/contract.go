package retrieval

import (
	"context"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// QueryEmbedder embeds a question with query intent.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher returns the nearest stored chunks, most similar first.
type Searcher interface {
	Query(ctx context.Context, collection string, vector []float32, k int) ([]domain.Match, error)
}
