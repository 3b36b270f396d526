package embedding

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

// recordingEmbedder returns, for each text, a vector whose first element is the index
// parsed from the text's trailing "#n" and records every batch it receives.
type recordingEmbedder struct {
	dims    int
	batches [][]string
	drop    bool // return one vector fewer than asked
	err     error
	failAt  int // 1-based batch number to fail on; 0 = never
}

func (r *recordingEmbedder) vector(text string) []float32 {
	v := make([]float32, r.dims)
	if i := strings.LastIndex(text, "#"); i >= 0 {
		n, _ := strconv.Atoi(text[i+1:])
		v[0] = float32(n)
	}
	return v
}

func (r *recordingEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if r.err != nil {
		return domain.EmbeddingResult{}, r.err
	}
	r.batches = append(r.batches, []string{text})
	return domain.EmbeddingResult{Embedding: r.vector(text), TotalTokens: 1}, nil
}

func (r *recordingEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	r.batches = append(r.batches, texts)
	if r.err != nil && (r.failAt == 0 || r.failAt == len(r.batches)) {
		return domain.BatchEmbeddingResult{}, r.err
	}
	vecs := make([][]float32, 0, len(texts))
	for _, t := range texts {
		vecs = append(vecs, r.vector(t))
	}
	if r.drop {
		vecs = vecs[:len(vecs)-1]
	}
	return domain.BatchEmbeddingResult{Embeddings: vecs, TotalTokens: len(texts)}, nil
}

func (r *recordingEmbedder) HealthCheck(context.Context) error { return r.err }

func testConfig(batch int) domain.VectorConfig {
	cfg := domain.DefaultVectorConfig()
	cfg.Model = "test-model"
	cfg.Dimensions = 4
	cfg.BatchSize = batch
	return cfg
}

func newClient(t *testing.T, r *recordingEmbedder, batch int) *Client {
	t.Helper()
	c, err := New(r, testConfig(batch), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "chunk #" + strconv.Itoa(i)
	}
	return out
}

func TestEmbedDocuments_CountAndOrder(t *testing.T) {
	const bs = 3
	for _, n := range []int{0, 1, bs, bs + 1, 2 * bs} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			r := &recordingEmbedder{dims: 4}
			c := newClient(t, r, bs)

			vecs, err := c.EmbedDocuments(context.Background(), texts(n))
			if err != nil {
				t.Fatal(err)
			}
			if len(vecs) != n {
				t.Fatalf("got %d vectors, want %d", len(vecs), n)
			}
			for i, v := range vecs {
				if int(v[0]) != i {
					t.Errorf("vector %d belongs to text %d", i, int(v[0]))
				}
			}

			wantBatches := (n + bs - 1) / bs
			if len(r.batches) != wantBatches {
				t.Errorf("batches = %d, want %d", len(r.batches), wantBatches)
			}
			for _, b := range r.batches {
				if len(b) > bs {
					t.Errorf("batch of %d exceeds %d", len(b), bs)
				}
			}
		})
	}
}

func TestEmbedDocuments_UsesDocumentInstruction(t *testing.T) {
	r := &recordingEmbedder{dims: 4}
	c := newClient(t, r, 10)

	if _, err := c.EmbedDocuments(context.Background(), []string{"hello"}); err != nil {
		t.Fatal(err)
	}
	if got := r.batches[0][0]; got != testConfig(10).DocumentInstruction+"hello" {
		t.Errorf("sent %q", got)
	}
}

func TestEmbedQuery_UsesQueryInstruction(t *testing.T) {
	r := &recordingEmbedder{dims: 4}
	c := newClient(t, r, 10)

	v, err := c.EmbedQuery(context.Background(), "what is #2")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 4 || v[0] != 2 {
		t.Errorf("vector = %v", v)
	}
	if got := r.batches[0][0]; !strings.HasPrefix(got, testConfig(10).QueryInstruction) {
		t.Errorf("sent %q", got)
	}
}

func TestEmbedDocuments_CountMismatch(t *testing.T) {
	r := &recordingEmbedder{dims: 4, drop: true}
	c := newClient(t, r, 5)

	_, err := c.EmbedDocuments(context.Background(), texts(3))
	if !errors.Is(err, domain.ErrCountMismatch) || !errors.Is(err, domain.ErrIntegration) {
		t.Errorf("err = %v, want ErrCountMismatch", err)
	}
}

func TestEmbedDocuments_DimensionMismatch(t *testing.T) {
	r := &recordingEmbedder{dims: 3}
	c := newClient(t, r, 5)

	_, err := c.EmbedDocuments(context.Background(), texts(2))
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("err = %v, want ErrVectorDimMismatch", err)
	}
	if _, err := c.EmbedQuery(context.Background(), "q"); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("query err = %v, want ErrVectorDimMismatch", err)
	}
}

func TestEmbedDocuments_StopsOnFailedBatch(t *testing.T) {
	provider := errors.New("boom")
	r := &recordingEmbedder{dims: 4, err: provider, failAt: 2}
	c := newClient(t, r, 2)

	_, err := c.EmbedDocuments(context.Background(), texts(6))
	if !errors.Is(err, provider) {
		t.Fatalf("err = %v", err)
	}
	if len(r.batches) != 2 {
		t.Errorf("batches = %d, want 2", len(r.batches))
	}
	if !strings.Contains(err.Error(), "[2:4]") {
		t.Errorf("error should name the failed range: %v", err)
	}
}

func TestEmbed_RecordsUsage(t *testing.T) {
	r := &recordingEmbedder{dims: 4}
	c := newClient(t, r, 2)
	ctx, u := domain.NewContextWithUsage(context.Background())

	if _, err := c.EmbedDocuments(ctx, texts(3)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.EmbedQuery(ctx, "q"); err != nil {
		t.Fatal(err)
	}
	if u.Calls != 3 || u.TotalTokens != 4 {
		t.Errorf("usage = %+v, want 3 calls / 4 tokens", *u)
	}
}

func TestEmbed_Metrics(t *testing.T) {
	r := &recordingEmbedder{dims: 4}
	c := newClient(t, r, 2)

	before := testutil.ToFloat64(metrics.EmbeddingRequestsTotal.WithLabelValues("test-model", "document", "ok"))
	if _, err := c.EmbedDocuments(context.Background(), texts(4)); err != nil {
		t.Fatal(err)
	}
	after := testutil.ToFloat64(metrics.EmbeddingRequestsTotal.WithLabelValues("test-model", "document", "ok"))
	if after-before != 2 {
		t.Errorf("document requests delta = %v, want 2", after-before)
	}
}

func TestNew_Validation(t *testing.T) {
	r := &recordingEmbedder{dims: 4}
	tests := []struct {
		name   string
		mutate func(*domain.VectorConfig)
	}{
		{"zero batch", func(c *domain.VectorConfig) { c.BatchSize = 0 }},
		{"batch above limit", func(c *domain.VectorConfig) { c.BatchSize = 101 }},
		{"same instructions", func(c *domain.VectorConfig) { c.QueryInstruction = c.DocumentInstruction }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(10)
			tt.mutate(&cfg)
			if _, err := New(r, cfg, nil); !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("err = %v, want ErrConfiguration", err)
			}
		})
	}
	if _, err := New(nil, testConfig(10), nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("nil provider: err = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	down := errors.New("down")
	c := newClient(t, &recordingEmbedder{dims: 4, err: down}, 2)
	if err := c.HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("err = %v", err)
	}
}
