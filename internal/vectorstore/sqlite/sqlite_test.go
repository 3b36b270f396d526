package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore"
)

func openMemory(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestEncodeDecodeVector(t *testing.T) {
	in := []float32{0, 1.5, -2.25, math.MaxFloat32}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error on truncated blob")
	}
}

func TestBackend_Collections(t *testing.T) {
	ctx := context.Background()
	b := openMemory(t)

	if err := b.CreateCollection(ctx, "docs", 3, domain.MetricCosine); err != nil {
		t.Fatal(err)
	}
	if err := b.CreateCollection(ctx, "docs", 3, domain.MetricCosine); err == nil {
		t.Error("expected error on duplicate collection")
	}

	names, err := b.ListCollections(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "docs" {
		t.Errorf("names = %v", names)
	}

	info, err := b.CollectionInfo(ctx, "docs")
	if err != nil {
		t.Fatal(err)
	}
	if info.Dim != 3 || info.Metric != domain.MetricCosine {
		t.Errorf("info = %+v", info)
	}
	if _, err := b.CollectionInfo(ctx, "missing"); err == nil {
		t.Error("expected error for missing collection")
	}
}

func TestBackend_UpsertQuery(t *testing.T) {
	ctx := context.Background()
	b := openMemory(t)
	_ = b.CreateCollection(ctx, "docs", 3, domain.MetricCosine)

	err := b.Upsert(ctx, "docs", []domain.Point{
		{ID: "a", Vector: []float32{1, 0, 0}, Payload: domain.Payload{"text": "alpha", "ordinal": 0}},
		{ID: "b", Vector: []float32{0, 1, 0}, Payload: domain.Payload{"text": "beta", "ordinal": 1}},
		{ID: "c", Vector: []float32{0, 0.1, 1}, Payload: domain.Payload{"text": "gamma", "ordinal": 2}},
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := b.Query(ctx, "docs", []float32{0, 1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := resp.(vectorstore.PointsResponse); !ok {
		t.Fatalf("response type = %T, want PointsResponse", resp)
	}
	got := vectorstore.Normalize(resp)
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	if got[0].ID != "b" || got[0].Payload.Text() != "beta" {
		t.Errorf("top = %+v", got[0])
	}
	if math.Abs(got[0].Score-1) > 1e-6 {
		t.Errorf("top score = %f, want 1", got[0].Score)
	}
	if got[1].ID != "c" {
		t.Errorf("second = %s, want c", got[1].ID)
	}
}

func TestBackend_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	b := openMemory(t)
	_ = b.CreateCollection(ctx, "docs", 2, domain.MetricCosine)

	_ = b.Upsert(ctx, "docs", []domain.Point{{ID: "x", Vector: []float32{1, 0}, Payload: domain.Payload{"text": "v1"}}})
	_ = b.Upsert(ctx, "docs", []domain.Point{{ID: "x", Vector: []float32{1, 0}, Payload: domain.Payload{"text": "v2"}}})

	resp, err := b.Query(ctx, "docs", []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	got := vectorstore.Normalize(resp)
	if len(got) != 1 || got[0].Payload.Text() != "v2" {
		t.Errorf("got %+v", got)
	}
}

func TestBackend_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	b := openMemory(t)
	_ = b.CreateCollection(ctx, "one", 2, domain.MetricCosine)
	_ = b.CreateCollection(ctx, "two", 2, domain.MetricCosine)
	_ = b.Upsert(ctx, "one", []domain.Point{{ID: "x", Vector: []float32{1, 0}, Payload: domain.Payload{}}})

	resp, err := b.Query(ctx, "two", []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := vectorstore.Normalize(resp); len(got) != 0 {
		t.Errorf("got %d matches from empty collection", len(got))
	}
}

func TestBackend_FilePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")

	b, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	_ = b.CreateCollection(ctx, "docs", 2, domain.MetricCosine)
	_ = b.Upsert(ctx, "docs", []domain.Point{{ID: "x", Vector: []float32{1, 0}, Payload: domain.Payload{"text": "kept"}}})
	_ = b.Close()

	b, err = Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	resp, err := b.Query(ctx, "docs", []float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	got := vectorstore.Normalize(resp)
	if len(got) != 1 || got[0].Payload.Text() != "kept" {
		t.Errorf("got %+v", got)
	}
}

func TestBackend_WithStore(t *testing.T) {
	ctx := context.Background()
	s := vectorstore.New(openMemory(t), vectorstore.Config{BatchSize: 1})
	if err := s.EnsureCollection(ctx, "docs", 2, domain.MetricCosine); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureCollection(ctx, "docs", 2, domain.MetricCosine); err != nil {
		t.Fatalf("second EnsureCollection: %v", err)
	}
	err := s.Upsert(ctx, "docs", []domain.Point{
		{Vector: []float32{1, 0}, Payload: domain.Payload{"text": "a"}},
		{Vector: []float32{0, 1}, Payload: domain.Payload{"text": "b"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Query(ctx, "docs", []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Payload.Text() != "b" {
		t.Errorf("got %+v", got)
	}
}
