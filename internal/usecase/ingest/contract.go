package ingest

import (
	"context"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// TextExtractor converts a PDF into raw text.
type TextExtractor interface {
	ExtractFile(ctx context.Context, path string) (string, error)
	Extract(ctx context.Context, data []byte) (string, error)
}

// Chunker splits normalized text into word windows.
type Chunker interface {
	Chunk(text string) []domain.Chunk
}

// DocumentEmbedder embeds chunk texts with document intent.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// PointWriter stores points in a collection.
type PointWriter interface {
	Upsert(ctx context.Context, collection string, points []domain.Point) error
}
