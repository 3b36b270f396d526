package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore"
)

// Config holds Qdrant connection settings.
type Config struct {
	URL    string
	APIKey string
	// HTTPClient defaults to http.DefaultClient. Per-call timeouts come from the context.
	HTTPClient *http.Client
}

// Backend implements vectorstore.Backend over Qdrant REST.
type Backend struct {
	c client
}

// New creates a Backend.
func New(cfg Config) *Backend {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Backend{c: client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		http:    hc,
	}}
}

// Name implements vectorstore.Backend.
func (b *Backend) Name() string { return "qdrant" }

// Ping implements vectorstore.Backend.
func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.c.do(ctx, http.MethodGet, "/", nil)
	return err
}

// ListCollections implements vectorstore.Backend.
func (b *Backend) ListCollections(ctx context.Context) ([]string, error) {
	raw, err := b.c.do(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return nil, err
	}
	var res struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode collections: %w", err)
	}
	names := make([]string, 0, len(res.Collections))
	for _, c := range res.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

// CollectionInfo implements vectorstore.Backend. Collections with named vectors report Dim 0.
func (b *Backend) CollectionInfo(ctx context.Context, name string) (domain.CollectionInfo, error) {
	raw, err := b.c.do(ctx, http.MethodGet, collectionPath(name, ""), nil)
	if err != nil {
		return domain.CollectionInfo{}, err
	}
	var res struct {
		Config struct {
			Params struct {
				Vectors json.RawMessage `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return domain.CollectionInfo{}, fmt.Errorf("decode collection %q: %w", name, err)
	}

	info := domain.CollectionInfo{Name: name}
	var vp vectorParams
	if json.Unmarshal(res.Config.Params.Vectors, &vp) == nil && vp.Size > 0 {
		info.Dim = vp.Size
		info.Metric = fromDistance(vp.Distance)
	}
	return info, nil
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

// CreateCollection implements vectorstore.Backend.
func (b *Backend) CreateCollection(ctx context.Context, name string, dim int, metric domain.Metric) error {
	body := map[string]any{
		"vectors": vectorParams{Size: dim, Distance: toDistance(metric)},
	}
	_, err := b.c.do(ctx, http.MethodPut, collectionPath(name, ""), body)
	return err
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload domain.Payload `json:"payload"`
}

// Upsert implements vectorstore.Backend and waits until the batch is applied.
func (b *Backend) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	body := struct {
		Points []point `json:"points"`
	}{Points: make([]point, len(points))}
	for i, p := range points {
		body.Points[i] = point{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}
	_, err := b.c.do(ctx, http.MethodPut, collectionPath(collection, "/points?wait=true"), body)
	return err
}

// Query implements vectorstore.Backend. Servers with the universal query endpoint answer
// {"points": [...]}; older servers only have /points/search and answer a bare list.
func (b *Backend) Query(ctx context.Context, collection string, vector []float32, k int) (vectorstore.Response, error) {
	raw, err := b.c.do(ctx, http.MethodPost, collectionPath(collection, "/points/query"), map[string]any{
		"query":        vector,
		"limit":        k,
		"with_payload": true,
	})
	if IsNotFound(err) {
		raw, err = b.c.do(ctx, http.MethodPost, collectionPath(collection, "/points/search"), map[string]any{
			"vector":       vector,
			"limit":        k,
			"with_payload": true,
		})
	}
	if err != nil {
		return nil, err
	}
	return vectorstore.DecodeJSON(raw), nil
}

func toDistance(m domain.Metric) string {
	switch m {
	case domain.MetricCosine, "":
		return "Cosine"
	default:
		return string(m)
	}
}

func fromDistance(d string) domain.Metric {
	if strings.EqualFold(d, "cosine") {
		return domain.MetricCosine
	}
	return domain.Metric(strings.ToLower(d))
}
