// Package memory is an in-process vector store backend with exact cosine search.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore"
)

type collection struct {
	dim    int
	metric domain.Metric
	order  []string // insertion order for stable ties
	points map[string]domain.Point
}

// Backend keeps collections in memory. Safe for concurrent use.
type Backend struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// New creates an empty Backend.
func New() *Backend {
	return &Backend{collections: make(map[string]*collection)}
}

// Name implements vectorstore.Backend.
func (b *Backend) Name() string { return "memory" }

// Ping implements vectorstore.Backend.
func (b *Backend) Ping(_ context.Context) error { return nil }

// ListCollections implements vectorstore.Backend.
func (b *Backend) ListCollections(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Sorted(maps.Keys(b.collections)), nil
}

// CollectionInfo implements vectorstore.Backend.
func (b *Backend) CollectionInfo(_ context.Context, name string) (domain.CollectionInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.collections[name]
	if !ok {
		return domain.CollectionInfo{}, fmt.Errorf("collection %q not found", name)
	}
	return domain.CollectionInfo{Name: name, Dim: c.dim, Metric: c.metric}, nil
}

// CreateCollection implements vectorstore.Backend.
func (b *Backend) CreateCollection(_ context.Context, name string, dim int, metric domain.Metric) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.collections[name]; ok {
		return fmt.Errorf("collection %q already exists", name)
	}
	b.collections[name] = &collection{dim: dim, metric: metric, points: make(map[string]domain.Point)}
	return nil
}

// Upsert implements vectorstore.Backend.
func (b *Backend) Upsert(_ context.Context, name string, points []domain.Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		return fmt.Errorf("collection %q not found", name)
	}
	for _, p := range points {
		if len(p.Vector) != c.dim {
			return fmt.Errorf("point %s: got %d dimensions, want %d", p.ID, len(p.Vector), c.dim)
		}
		if _, exists := c.points[p.ID]; !exists {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = domain.Point{
			ID:      p.ID,
			Vector:  slices.Clone(p.Vector),
			Payload: maps.Clone(p.Payload),
		}
	}
	return nil
}

// Query implements vectorstore.Backend. The answer is a bare ranked list.
func (b *Backend) Query(_ context.Context, name string, vector []float32, k int) (vectorstore.Response, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %q not found", name)
	}
	scored := make([]vectorstore.ScoredPoint, 0, len(c.order))
	for _, id := range c.order {
		p := c.points[id]
		scored = append(scored, vectorstore.ScoredPoint{
			ID:      id,
			Score:   vectorstore.Cosine(vector, p.Vector),
			Payload: maps.Clone(p.Payload),
		})
	}
	return vectorstore.RankedList(scored, k), nil
}

// Len returns the number of points in a collection.
func (b *Backend) Len(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if c, ok := b.collections[name]; ok {
		return len(c.points)
	}
	return 0
}
