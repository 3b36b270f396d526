// Package sqlite is an embedded vector store backend on modernc.org/sqlite.
// Similarity is computed by a registered vec_cosine scalar function (exact scan).
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	sqlite "modernc.org/sqlite"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name   TEXT PRIMARY KEY,
	dim    INTEGER NOT NULL,
	metric TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS points (
	collection TEXT NOT NULL REFERENCES collections(name),
	id         TEXT NOT NULL,
	vector     BLOB NOT NULL,
	payload    TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);`

var registerOnce sync.Once

// registerFunctions makes vec_cosine available on connections opened afterwards.
func registerFunctions() {
	registerOnce.Do(func() {
		_ = sqlite.RegisterDeterministicScalarFunction("vec_cosine", 2, vecCosine)
	})
}

func vecCosine(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_cosine: expected 2 arguments, got %d", len(args))
	}
	a, err := asVector(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asVector(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}
	return vectorstore.Cosine(a, b), nil
}

func asVector(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return decodeVector(v)
	default:
		return nil, fmt.Errorf("vec_cosine: unsupported argument type %T, want BLOB", arg)
	}
}

// encodeVector stores float32 values little-endian without a length prefix.
func encodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Backend stores collections in one SQLite database.
type Backend struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*Backend, error) {
	registerFunctions()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// SQLite serializes writers; a single connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Backend{db: db}, nil
}

// Close releases the database.
func (b *Backend) Close() error { return b.db.Close() }

// Name implements vectorstore.Backend.
func (b *Backend) Name() string { return "sqlite" }

// Ping implements vectorstore.Backend.
func (b *Backend) Ping(ctx context.Context) error { return b.db.PingContext(ctx) }

// ListCollections implements vectorstore.Backend.
func (b *Backend) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT name FROM collections ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// CollectionInfo implements vectorstore.Backend.
func (b *Backend) CollectionInfo(ctx context.Context, name string) (domain.CollectionInfo, error) {
	info := domain.CollectionInfo{Name: name}
	var metric string
	err := b.db.QueryRowContext(ctx, "SELECT dim, metric FROM collections WHERE name = ?", name).
		Scan(&info.Dim, &metric)
	if err != nil {
		return domain.CollectionInfo{}, fmt.Errorf("collection %q: %w", name, err)
	}
	info.Metric = domain.Metric(metric)
	return info, nil
}

// CreateCollection implements vectorstore.Backend.
func (b *Backend) CreateCollection(ctx context.Context, name string, dim int, metric domain.Metric) error {
	_, err := b.db.ExecContext(ctx,
		"INSERT INTO collections (name, dim, metric) VALUES (?, ?, ?)", name, dim, string(metric))
	if err != nil {
		return fmt.Errorf("create collection %q: %w", name, err)
	}
	return nil
}

// Upsert implements vectorstore.Backend. One batch is one transaction.
func (b *Backend) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (collection, id, vector, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET vector = excluded.vector, payload = excluded.payload`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("encode payload of %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, p.ID, encodeVector(p.Vector), string(payload)); err != nil {
			return fmt.Errorf("upsert %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Query implements vectorstore.Backend. The answer is an object with a points list.
func (b *Backend) Query(ctx context.Context, collection string, vector []float32, k int) (vectorstore.Response, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, payload, vec_cosine(vector, ?) AS score
		FROM points
		WHERE collection = ?
		ORDER BY score DESC, rowid
		LIMIT ?`, encodeVector(vector), collection, k)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", collection, err)
	}
	defer rows.Close()

	resp := vectorstore.PointsResponse{Points: []vectorstore.Hit{}}
	for rows.Next() {
		var (
			id, raw string
			score   sql.NullFloat64
		)
		if err := rows.Scan(&id, &raw, &score); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		var payload domain.Payload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("decode payload of %s: %w", id, err)
		}
		resp.Points = append(resp.Points, vectorstore.ScoredPoint{ID: id, Score: score.Float64, Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %q: %w", collection, err)
	}
	return resp, nil
}
