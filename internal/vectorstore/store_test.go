package vectorstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore/memory"
)

// failingBackend wraps memory and fails the n-th upsert call.
type failingBackend struct {
	*memory.Backend
	failOn  int
	calls   int
	sizes   []int
	queryFn func() (vectorstore.Response, error)
}

func (f *failingBackend) Upsert(ctx context.Context, name string, points []domain.Point) error {
	f.calls++
	f.sizes = append(f.sizes, len(points))
	if f.calls == f.failOn {
		return errors.New("connection reset")
	}
	return f.Backend.Upsert(ctx, name, points)
}

func (f *failingBackend) Query(ctx context.Context, name string, v []float32, k int) (vectorstore.Response, error) {
	if f.queryFn != nil {
		return f.queryFn()
	}
	return f.Backend.Query(ctx, name, v, k)
}

// sizelessBackend reports collections without a vector size and counts info lookups.
type sizelessBackend struct {
	*memory.Backend
	infoCalls int
}

func (b *sizelessBackend) CollectionInfo(ctx context.Context, name string) (domain.CollectionInfo, error) {
	b.infoCalls++
	info, err := b.Backend.CollectionInfo(ctx, name)
	info.Dim = 0
	return info, err
}

func points(n, dim int) []domain.Point {
	out := make([]domain.Point, n)
	for i := range out {
		v := make([]float32, dim)
		v[i%dim] = 1
		out[i] = domain.Point{ID: domain.PointID("doc", i), Vector: v, Payload: domain.Payload{"text": "t"}}
	}
	return out
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.New(memory.New(), vectorstore.Config{})
	if err := s.EnsureCollection(ctx, "docs", 3, domain.MetricCosine); err != nil {
		t.Fatal(err)
	}

	vecs := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 1, 0},
		"c": {0.2, 0.2, 1},
	}
	var pts []domain.Point
	for _, text := range []string{"a", "b", "c"} {
		pts = append(pts, domain.Point{Vector: vecs[text], Payload: domain.Payload{domain.PayloadText: text}})
	}
	if err := s.Upsert(ctx, "docs", pts); err != nil {
		t.Fatal(err)
	}

	got, err := s.Query(ctx, "docs", vecs["b"], 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d matches, want 3", len(got))
	}
	if got[0].Payload.Text() != "b" {
		t.Errorf("top match = %q, want b", got[0].Payload.Text())
	}
	if got[0].Score < 0.999 {
		t.Errorf("top score = %f, want ~1", got[0].Score)
	}
	if got[0].ID == "" {
		t.Error("expected generated id")
	}
}

func TestStore_EnsureCollectionIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	s := vectorstore.New(mem, vectorstore.Config{})

	for range 2 {
		if err := s.EnsureCollection(ctx, "docs", 4, domain.MetricCosine); err != nil {
			t.Fatalf("EnsureCollection: %v", err)
		}
	}
	names, _ := mem.ListCollections(ctx)
	if len(names) != 1 || names[0] != "docs" {
		t.Errorf("collections = %v, want [docs]", names)
	}
}

func TestStore_EnsureCollectionDimMismatch(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	_ = mem.CreateCollection(ctx, "docs", 4, domain.MetricCosine)

	s := vectorstore.New(mem, vectorstore.Config{})
	err := s.EnsureCollection(ctx, "docs", 8, domain.MetricCosine)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("err = %v, want ErrVectorDimMismatch", err)
	}
	if !errors.Is(err, domain.ErrIntegration) {
		t.Error("dimension mismatch should be an integration error")
	}
}

func TestStore_EnsureCollectionValidation(t *testing.T) {
	s := vectorstore.New(memory.New(), vectorstore.Config{})
	if err := s.EnsureCollection(context.Background(), "", 4, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty name: err = %v", err)
	}
	if err := s.EnsureCollection(context.Background(), "x", 0, ""); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("zero dim: err = %v", err)
	}
}

func TestStore_UpsertBatches(t *testing.T) {
	ctx := context.Background()
	fb := &failingBackend{Backend: memory.New()}
	s := vectorstore.New(fb, vectorstore.Config{BatchSize: 2})
	_ = s.EnsureCollection(ctx, "docs", 3, domain.MetricCosine)

	if err := s.Upsert(ctx, "docs", points(5, 3)); err != nil {
		t.Fatal(err)
	}
	want := []int{2, 2, 1}
	if len(fb.sizes) != len(want) {
		t.Fatalf("batches = %v, want %v", fb.sizes, want)
	}
	for i := range want {
		if fb.sizes[i] != want[i] {
			t.Errorf("batch %d size = %d, want %d", i, fb.sizes[i], want[i])
		}
	}
	if fb.Len("docs") != 5 {
		t.Errorf("stored = %d, want 5", fb.Len("docs"))
	}
}

func TestStore_UpsertDeterministicIDsOverwrite(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	s := vectorstore.New(mem, vectorstore.Config{})
	_ = s.EnsureCollection(ctx, "docs", 3, domain.MetricCosine)

	for range 2 {
		if err := s.Upsert(ctx, "docs", points(3, 3)); err != nil {
			t.Fatal(err)
		}
	}
	if mem.Len("docs") != 3 {
		t.Errorf("stored = %d, want 3", mem.Len("docs"))
	}
}

func TestStore_UpsertPartialFailure(t *testing.T) {
	ctx := context.Background()
	fb := &failingBackend{Backend: memory.New(), failOn: 2}
	s := vectorstore.New(fb, vectorstore.Config{BatchSize: 2})
	_ = s.EnsureCollection(ctx, "docs", 3, domain.MetricCosine)

	err := s.Upsert(ctx, "docs", points(5, 3))
	var pe *vectorstore.PartialUploadError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PartialUploadError", err)
	}
	if pe.Committed != 2 || pe.Total != 5 {
		t.Errorf("committed/total = %d/%d, want 2/5", pe.Committed, pe.Total)
	}
	if !errors.Is(err, domain.ErrVectorStore) {
		t.Error("expected ErrVectorStore in chain")
	}
	if fb.calls != 2 {
		t.Errorf("upsert calls = %d, want 2 (stop at first failure)", fb.calls)
	}
	if fb.Len("docs") != 2 {
		t.Errorf("stored = %d, want 2 (no rollback)", fb.Len("docs"))
	}
}

func TestStore_UpsertDimMismatch(t *testing.T) {
	ctx := context.Background()
	fb := &failingBackend{Backend: memory.New()}
	s := vectorstore.New(fb, vectorstore.Config{})
	_ = s.EnsureCollection(ctx, "docs", 3, domain.MetricCosine)

	pts := points(2, 3)
	pts[1].Vector = []float32{1, 2}
	err := s.Upsert(ctx, "docs", pts)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("err = %v, want ErrVectorDimMismatch", err)
	}
	if fb.calls != 0 {
		t.Error("backend must not be called when dimensions are wrong")
	}
}

func TestStore_UnknownDimensionLookedUpOnce(t *testing.T) {
	ctx := context.Background()
	sb := &sizelessBackend{Backend: memory.New()}
	if err := sb.CreateCollection(ctx, "docs", 4, domain.MetricCosine); err != nil {
		t.Fatal(err)
	}
	s := vectorstore.New(sb, vectorstore.Config{BatchSize: 50})

	if err := s.Upsert(ctx, "docs", points(200, 4)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := s.Query(ctx, "docs", []float32{1, 0, 0, 0}, 3); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if sb.infoCalls != 1 {
		t.Errorf("collection info called %d times, want 1", sb.infoCalls)
	}
	if sb.Len("docs") != 200 {
		t.Errorf("stored %d points, want 200", sb.Len("docs"))
	}
}

func TestStore_UpsertEmpty(t *testing.T) {
	fb := &failingBackend{Backend: memory.New()}
	s := vectorstore.New(fb, vectorstore.Config{})
	if err := s.Upsert(context.Background(), "docs", nil); err != nil {
		t.Fatal(err)
	}
	if fb.calls != 0 {
		t.Error("no backend call expected")
	}
}

func TestStore_QueryValidation(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.New(memory.New(), vectorstore.Config{})
	_ = s.EnsureCollection(ctx, "docs", 3, domain.MetricCosine)

	if _, err := s.Query(ctx, "docs", []float32{1, 0, 0}, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("k=0: err = %v", err)
	}
	if _, err := s.Query(ctx, "docs", []float32{1, 0}, 1); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("short vector: err = %v", err)
	}
}

func TestStore_QueryEmptyCollection(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.New(memory.New(), vectorstore.Config{})
	_ = s.EnsureCollection(ctx, "docs", 3, domain.MetricCosine)

	got, err := s.Query(ctx, "docs", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil", got)
	}
}

func TestStore_QueryMalformedShape(t *testing.T) {
	ctx := context.Background()
	fb := &failingBackend{
		Backend: memory.New(),
		queryFn: func() (vectorstore.Response, error) {
			return vectorstore.RawResponse{Body: []byte(`{"unexpected":true}`)}, nil
		},
	}
	s := vectorstore.New(fb, vectorstore.Config{})
	_ = s.EnsureCollection(ctx, "docs", 3, domain.MetricCosine)

	got, err := s.Query(ctx, "docs", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestStore_QueryTruncatesToK(t *testing.T) {
	ctx := context.Background()
	fb := &failingBackend{
		Backend: memory.New(),
		queryFn: func() (vectorstore.Response, error) {
			return vectorstore.ListResponse{
				vectorstore.ScoredPoint{ID: "1", Score: 0.9},
				vectorstore.ScoredPoint{ID: "2", Score: 0.8},
				vectorstore.ScoredPoint{ID: "3", Score: 0.7},
			}, nil
		},
	}
	s := vectorstore.New(fb, vectorstore.Config{})
	_ = s.EnsureCollection(ctx, "docs", 3, domain.MetricCosine)

	got, err := s.Query(ctx, "docs", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %d, want 2", len(got))
	}
}

func TestStore_QueryBackendError(t *testing.T) {
	ctx := context.Background()
	fb := &failingBackend{
		Backend: memory.New(),
		queryFn: func() (vectorstore.Response, error) { return nil, errors.New("503") },
	}
	s := vectorstore.New(fb, vectorstore.Config{})
	_ = s.EnsureCollection(ctx, "docs", 3, domain.MetricCosine)

	_, err := s.Query(ctx, "docs", []float32{1, 0, 0}, 2)
	if !errors.Is(err, domain.ErrVectorStore) || !errors.Is(err, domain.ErrRemoteService) {
		t.Errorf("err = %v, want ErrVectorStore", err)
	}
}

func TestStore_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fb := &failingBackend{
		Backend: memory.New(),
		queryFn: func() (vectorstore.Response, error) { return nil, context.Canceled },
	}
	s := vectorstore.New(fb, vectorstore.Config{})
	_ = s.EnsureCollection(ctx, "docs", 3, domain.MetricCosine)
	cancel()

	_, err := s.Query(ctx, "docs", []float32{1, 0, 0}, 2)
	if !errors.Is(err, domain.ErrCanceled) {
		t.Errorf("err = %v, want ErrCanceled", err)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero", []float32{0, 0}, []float32{1, 0}, 0},
		{"length differs", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vectorstore.Cosine(tt.a, tt.b)
			if d := got - tt.want; d > 1e-6 || d < -1e-6 {
				t.Errorf("Cosine = %f, want %f", got, tt.want)
			}
		})
	}
}
