package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/logger"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
)

// DefaultBatchSize bounds the number of points sent per upsert request.
const DefaultBatchSize = 50

// Config holds Store settings.
type Config struct {
	BatchSize int           // points per upsert request; 0 = DefaultBatchSize
	Timeout   time.Duration // per backend call; 0 = none
}

// Store adds batching, dimension checks, timeouts, error classification and metrics
// on top of a Backend.
type Store struct {
	backend   Backend
	batchSize int
	timeout   time.Duration

	mu   sync.RWMutex
	dims map[string]int // collection → vector size; 0 when the backend does not report one
}

// New wraps a backend.
func New(backend Backend, cfg Config) *Store {
	bs := cfg.BatchSize
	if bs <= 0 {
		bs = DefaultBatchSize
	}
	return &Store{
		backend:   backend,
		batchSize: bs,
		timeout:   cfg.Timeout,
		dims:      make(map[string]int),
	}
}

// Backend returns the wrapped driver name.
func (s *Store) Backend() string { return s.backend.Name() }

// Ping checks backend connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.call(ctx, "ping", func(ctx context.Context) error {
		return s.backend.Ping(ctx)
	})
}

// EnsureCollection creates the collection when absent. Calling it again is a no-op.
// An existing collection with a different vector size is reported as ErrVectorDimMismatch.
func (s *Store) EnsureCollection(ctx context.Context, name string, dim int, metric domain.Metric) error {
	if name == "" {
		return fmt.Errorf("collection name is required: %w", domain.ErrInvalidInput)
	}
	if dim <= 0 {
		return domain.ConfigError("collection %q: dimension must be positive, got %d", name, dim)
	}
	if metric == "" {
		metric = domain.MetricCosine
	}

	log := logger.FromContext(ctx).With(zap.String("collection", name), zap.String("backend", s.backend.Name()))

	var names []string
	err := s.call(ctx, "list_collections", func(ctx context.Context) error {
		var err error
		names, err = s.backend.ListCollections(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if !slices.Contains(names, name) {
		err = s.call(ctx, "create_collection", func(ctx context.Context) error {
			return s.backend.CreateCollection(ctx, name, dim, metric)
		})
		if err != nil {
			return err
		}
		log.Info("Created collection", zap.Int("dim", dim), zap.String("metric", string(metric)))
		s.setDim(name, dim)
		return nil
	}

	var info domain.CollectionInfo
	err = s.call(ctx, "collection_info", func(ctx context.Context) error {
		var err error
		info, err = s.backend.CollectionInfo(ctx, name)
		return err
	})
	if err != nil {
		return err
	}
	if info.Dim != 0 && info.Dim != dim {
		return fmt.Errorf("collection %q has dimension %d, configured %d: %w",
			name, info.Dim, dim, domain.ErrVectorDimMismatch)
	}

	log.Debug("Collection exists", zap.Int("dim", dim))
	s.setDim(name, dim)
	return nil
}

// Upsert writes points in sequential batches. Points without an ID get a random one.
// The first failed batch stops the upload with a *PartialUploadError.
func (s *Store) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := s.checkDims(ctx, collection, points); err != nil {
		return err
	}

	log := logger.FromContext(ctx).With(zap.String("collection", collection))

	committed := 0
	for batch := range slices.Chunk(points, s.batchSize) {
		prepared := make([]domain.Point, len(batch))
		for i, p := range batch {
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			prepared[i] = p
		}

		err := s.call(ctx, "upsert", func(ctx context.Context) error {
			return s.backend.Upsert(ctx, collection, prepared)
		})
		if err != nil {
			log.Error("Upsert batch failed",
				zap.Int("batch_offset", committed),
				zap.Int("committed", committed),
				zap.Int("total", len(points)),
				zap.Error(err))
			return &PartialUploadError{Committed: committed, Total: len(points), Err: err}
		}
		committed += len(batch)
		log.Debug("Upserted batch", zap.Int("batch_offset", committed-len(batch)), zap.Int("size", len(batch)))
	}
	return nil
}

// Query returns up to k nearest matches, most similar first.
func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int) ([]domain.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidInput)
	}
	if err := s.checkDim(ctx, collection, len(vector)); err != nil {
		return nil, err
	}

	var resp Response
	err := s.call(ctx, "query", func(ctx context.Context) error {
		var err error
		resp, err = s.backend.Query(ctx, collection, vector, k)
		return err
	})
	if err != nil {
		return nil, err
	}

	matches := Normalize(resp)
	if _, raw := resp.(RawResponse); raw || resp == nil {
		logger.FromContext(ctx).Warn("Unrecognized query response shape, treating as empty",
			zap.String("collection", collection), zap.String("backend", s.backend.Name()))
	}
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *Store) checkDims(ctx context.Context, collection string, points []domain.Point) error {
	want, err := s.collectionDim(ctx, collection)
	if err != nil {
		return err
	}
	for i := range points {
		if err := validateDim(collection, len(points[i].Vector), want); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) checkDim(ctx context.Context, collection string, got int) error {
	want, err := s.collectionDim(ctx, collection)
	if err != nil {
		return err
	}
	return validateDim(collection, got, want)
}

// collectionDim returns the cached vector size of a collection, asking the backend on first use.
// A size the backend does not report is cached as 0 and never checked.
func (s *Store) collectionDim(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	want, ok := s.dims[collection]
	s.mu.RUnlock()
	if ok {
		return want, nil
	}

	var info domain.CollectionInfo
	err := s.call(ctx, "collection_info", func(ctx context.Context) error {
		var err error
		info, err = s.backend.CollectionInfo(ctx, collection)
		return err
	})
	if err != nil {
		return 0, err
	}
	want = max(info.Dim, 0)
	s.setDim(collection, want)
	return want, nil
}

func validateDim(collection string, got, want int) error {
	if got == 0 {
		return fmt.Errorf("empty vector: %w", domain.ErrVectorDimMismatch)
	}
	if want > 0 && got != want {
		return fmt.Errorf("vector has %d dimensions, collection %q expects %d: %w",
			got, collection, want, domain.ErrVectorDimMismatch)
	}
	return nil
}

func (s *Store) setDim(collection string, dim int) {
	s.mu.Lock()
	s.dims[collection] = dim
	s.mu.Unlock()
}

// call runs one backend operation with the configured timeout, records metrics and
// classifies the error as ErrVectorStore or ErrCanceled.
func (s *Store) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)

	backend := s.backend.Name()
	metrics.VectorStoreOpDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	metrics.VectorStoreOpsTotal.WithLabelValues(backend, op, metrics.StatusOf(err)).Inc()

	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrVectorDimMismatch) {
		return fmt.Errorf("%s %s: %w", backend, op, err)
	}
	return domain.WrapRemote(ctx, domain.ErrVectorStore, backend+" "+op, err)
}
