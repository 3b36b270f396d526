package pdfrag

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	healthuc "github.com/kailas-cloud/pdfrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/pdfrag/internal/usecase/ingest"
)

// --- ingestUseCase mock ---

type mockIngestUC struct {
	fileFn  func(ctx context.Context, path, source string) (ingestuc.Result, error)
	bytesFn func(ctx context.Context, data []byte, source string) (ingestuc.Result, error)
}

func (m *mockIngestUC) IngestFile(ctx context.Context, path, source string) (ingestuc.Result, error) {
	return m.fileFn(ctx, path, source)
}

func (m *mockIngestUC) IngestBytes(ctx context.Context, data []byte, source string) (ingestuc.Result, error) {
	return m.bytesFn(ctx, data, source)
}

// --- retrievalUseCase mock ---

type mockRetrievalUC struct {
	searchFn func(ctx context.Context, query string, k int) (domain.Answer, error)
}

func (m *mockRetrievalUC) Search(ctx context.Context, query string, k int) (domain.Answer, error) {
	return m.searchFn(ctx, query, k)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- public model stubs ---

// hashEmbedder spreads words over a small vector.
type hashEmbedder struct {
	dims  int
	calls int
}

func (e *hashEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	e.calls++
	v := make([]float32, e.dims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[int(h.Sum32())%e.dims]++
	}
	return EmbeddingResult{Embedding: v, TotalTokens: 1}, nil
}

type batchHashEmbedder struct {
	hashEmbedder
	batches int
}

func (e *batchHashEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	e.batches++
	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		r, _ := e.hashEmbedder.Embed(ctx, t)
		out.Embeddings[i] = r.Embedding
		out.TotalTokens += r.TotalTokens
	}
	return out, nil
}

type failingEmbedder struct{ err error }

func (e failingEmbedder) Embed(context.Context, string) (EmbeddingResult, error) {
	return EmbeddingResult{}, e.err
}

type stubGenerator struct {
	reply  string
	err    error
	prompt string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, g.err
}
