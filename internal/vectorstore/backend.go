// Package vectorstore wraps vector databases behind one upsert/query contract.
// Backends answer queries in their native shape; Normalize turns every shape into
// a ranked []domain.Match.
package vectorstore

import (
	"context"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// Backend is a vector database driver. Errors are returned raw; Store classifies them.
type Backend interface {
	// Name labels metrics and logs ("qdrant", "redis", ...).
	Name() string
	Ping(ctx context.Context) error
	ListCollections(ctx context.Context) ([]string, error)
	// CollectionInfo reports an existing collection; Dim is 0 when unknown.
	CollectionInfo(ctx context.Context, name string) (domain.CollectionInfo, error)
	CreateCollection(ctx context.Context, name string, dim int, metric domain.Metric) error
	Upsert(ctx context.Context, collection string, points []domain.Point) error
	Query(ctx context.Context, collection string, vector []float32, k int) (Response, error)
}
