// Package redis is a vector store backend on Redis 8+ / Valkey search (FT.CREATE HNSW, FT.SEARCH KNN).
//
// Keys:
//
//	pdfrag:meta:<collection>        hash {dim, metric}
//	pdfrag:pt:<collection>:<id>     hash {vector, payload, document_id, ordinal}
//	pdfrag:idx:<collection>         FT index over the point prefix
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/pdfrag/internal/db"
	redisstore "github.com/kailas-cloud/pdfrag/internal/db/redis"
	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore"
)

const (
	metaPrefix  = "pdfrag:meta:"
	pointPrefix = "pdfrag:pt:"
	indexPrefix = "pdfrag:idx:"

	fieldVector  = "vector"
	fieldPayload = "payload"
	fieldDim     = "dim"
	fieldMetric  = "metric"
)

// store is the slice of db.Store the backend needs.
type store interface {
	db.Pinger
	db.HashStore
	db.IndexManager
	db.Searcher
}

// Backend implements vectorstore.Backend on a db.Store.
type Backend struct {
	store store
	name  string
}

// New creates a Backend. name labels metrics ("redis" or "valkey").
func New(s store, name string) *Backend {
	if name == "" {
		name = "redis"
	}
	return &Backend{store: s, name: name}
}

// Name implements vectorstore.Backend.
func (b *Backend) Name() string { return b.name }

// Ping implements vectorstore.Backend.
func (b *Backend) Ping(ctx context.Context) error { return b.store.Ping(ctx) }

// ListCollections implements vectorstore.Backend.
func (b *Backend) ListCollections(ctx context.Context) ([]string, error) {
	keys, err := b.store.Scan(ctx, metaPrefix+"*")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, metaPrefix))
	}
	return names, nil
}

// CollectionInfo implements vectorstore.Backend.
func (b *Backend) CollectionInfo(ctx context.Context, name string) (domain.CollectionInfo, error) {
	fields, err := b.store.HGetAll(ctx, metaPrefix+name)
	if err != nil {
		return domain.CollectionInfo{}, err
	}
	if len(fields) == 0 {
		return domain.CollectionInfo{}, fmt.Errorf("collection %q: %w", name, db.ErrKeyNotFound)
	}
	dim, err := strconv.Atoi(fields[fieldDim])
	if err != nil {
		return domain.CollectionInfo{}, fmt.Errorf("collection %q: invalid dim %q", name, fields[fieldDim])
	}
	return domain.CollectionInfo{Name: name, Dim: dim, Metric: domain.Metric(fields[fieldMetric])}, nil
}

// CreateCollection implements vectorstore.Backend. It creates the FT index, then records
// the collection metadata; the index is dropped again if the metadata write fails.
func (b *Backend) CreateCollection(ctx context.Context, name string, dim int, metric domain.Metric) error {
	if metric != domain.MetricCosine {
		return fmt.Errorf("metric %q is not supported", metric)
	}

	def, err := db.NewIndex(indexPrefix + name).
		Prefix(pointPrefix + name + ":").
		Tag(domain.PayloadDocumentID).
		Numeric(domain.PayloadOrdinal).
		VectorHNSW(fieldVector, dim, db.DistanceCosine, 0, 0).
		Build()
	if err != nil {
		return fmt.Errorf("index definition for %q: %w", name, err)
	}

	created := true
	if err := b.store.CreateIndex(ctx, def); err != nil {
		if !errors.Is(err, db.ErrIndexExists) {
			return err
		}
		created = false
	}

	err = b.store.HSet(ctx, metaPrefix+name, map[string]string{
		fieldDim:    strconv.Itoa(dim),
		fieldMetric: string(metric),
	})
	if err != nil && created {
		_ = b.store.DropIndex(ctx, def.Name)
	}
	return err
}

// Upsert implements vectorstore.Backend in one pipelined round-trip per batch.
func (b *Backend) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	items := make([]db.HashSetItem, len(points))
	for i, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("encode payload of %s: %w", p.ID, err)
		}
		fields := map[string]string{
			fieldVector:  redisstore.VectorToBytes(p.Vector),
			fieldPayload: string(payload),
		}
		// Indexed attributes live next to the JSON payload.
		if v, ok := p.Payload[domain.PayloadDocumentID].(string); ok {
			fields[domain.PayloadDocumentID] = v
		}
		if v, ok := p.Payload[domain.PayloadOrdinal]; ok {
			fields[domain.PayloadOrdinal] = fmt.Sprint(v)
		}
		items[i] = db.HashSetItem{Key: pointKey(collection, p.ID), Fields: fields}
	}
	return b.store.HSetMulti(ctx, items)
}

// Query implements vectorstore.Backend. The answer is a tuple ([hits], total) whose hits are
// (id, payload, score).
func (b *Backend) Query(ctx context.Context, collection string, vector []float32, k int) (vectorstore.Response, error) {
	res, err := b.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexPrefix + collection,
		VectorField:  fieldVector,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldPayload},
	})
	if err != nil {
		return nil, err
	}

	prefix := pointPrefix + collection + ":"
	hits := make([]vectorstore.Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		var payload domain.Payload
		if raw, ok := e.Fields[fieldPayload]; ok {
			if err := json.Unmarshal([]byte(raw), &payload); err != nil {
				return nil, fmt.Errorf("decode payload of %s: %w", e.Key, err)
			}
		}
		hits = append(hits, vectorstore.TupleHit{
			ID:      strings.TrimPrefix(e.Key, prefix),
			Payload: payload,
			Extra:   []any{e.Score},
		})
	}
	return vectorstore.TupleResponse{Items: hits, Rest: []any{res.Total}}, nil
}

func pointKey(collection, id string) string {
	return pointPrefix + collection + ":" + id
}
