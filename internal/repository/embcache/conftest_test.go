package embcache

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/pdfrag/internal/db"
	dbredis "github.com/kailas-cloud/pdfrag/internal/db/redis"
	"github.com/kailas-cloud/pdfrag/internal/domain"
)

type stubEmbedder struct {
	result      domain.EmbeddingResult
	err         error
	batchErr    error
	batchCalls  int
	batchInputs [][]string
}

func (m *stubEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

func (m *stubEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	m.batchInputs = append(m.batchInputs, texts)
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = m.result.Embedding
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: m.result.PromptTokens * len(texts),
		TotalTokens:  m.result.TotalTokens * len(texts),
	}, nil
}

// memKV is an in-memory stand-in for the Redis KV store.
type memKV struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	setKeys []string
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	m.setKeys = append(m.setKeys, key)
	return nil
}

func (m *memKV) put(c *CachedEmbedder, text string, vec []float32) {
	m.data[c.cacheKey(text)] = []byte(dbredis.VectorToBytes(vec))
}

func newTestCachedEmbedder(t *testing.T, inner domain.Embedder) (*CachedEmbedder, *memKV) {
	t.Helper()
	kv := newMemKV()
	return New(inner, kv, Config{Model: "test-model", Dimensions: 3, TTL: time.Hour}), kv
}
