package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/pdfrag/internal/db"
)

func newMockStore(t *testing.T) (*Store, *mock.Client) {
	t.Helper()
	c := mock.NewClient(gomock.NewController(t))
	return NewStoreForTest(c), c
}

func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}

// --- client.go ---

func TestPing(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG")))

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("connection refused"))).AnyTimes()

	err := s.WaitForReady(context.Background(), 150*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestWaitForReady_ImmediatelyReady(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG")))

	if err := s.WaitForReady(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsRedisErr(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("GET", "k")).Return(mock.Result(mock.RedisError("ERR Unknown Index Name")))

	_, err := s.Get(context.Background(), "k")
	if !isRedisErr(errors.Unwrap(err), "unknown index name") {
		t.Errorf("expected case-insensitive match for %v", err)
	}
	if isRedisErr(errors.New("plain"), "plain") {
		t.Error("non-redis errors must not match")
	}
}

// --- kv.go ---

func TestGet(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("GET", "k")).Return(mock.Result(mock.RedisBlobString("value")))

	data, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("unexpected data: %s", data)
	}
}

func TestGet_NotFound(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("GET", "k")).Return(mock.Result(mock.RedisNil()))

	if _, err := s.Get(context.Background(), "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestGet_NetworkError(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("GET", "k")).Return(mock.ErrorResult(context.DeadlineExceeded))

	_, err := s.Get(context.Background(), "k")
	if errors.Is(err, db.ErrKeyNotFound) || !isDBError(err) {
		t.Errorf("expected db.Error, got %v", err)
	}
}

func TestSetWithTTL(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("SET", "k", "v", "EX", "3600")).Return(mock.Result(mock.RedisString("OK")))

	if err := s.SetWithTTL(context.Background(), "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetWithTTL_NoExpiry(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("SET", "k", "v")).Return(mock.Result(mock.RedisString("OK")))

	if err := s.SetWithTTL(context.Background(), "k", []byte("v"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- hash.go ---

func TestHSet_Error(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "HSET" && cmd[1] == "k" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	err := s.HSet(context.Background(), "k", map[string]string{"f": "v"})
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %v", err)
	}
}

func TestHSetMulti(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.Result(mock.RedisInt64(2)),
		})

	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "a", Fields: map[string]string{"text": "x"}},
		{Key: "b", Fields: map[string]string{"text": "y"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_ReportsFailedKey(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.Result(mock.RedisError("OOM command not allowed")),
		})

	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "a", Fields: map[string]string{"text": "x"}},
		{Key: "b", Fields: map[string]string{"text": "y"}},
	})
	if err == nil || !strings.Contains(err.Error(), "key b") {
		t.Fatalf("expected error naming key b, got %v", err)
	}
}

func TestHSetMulti_Empty(t *testing.T) {
	s, _ := newMockStore(t)
	if err := s.HSetMulti(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHGetAll(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "k")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"dim":    mock.RedisString("768"),
			"metric": mock.RedisString("cosine"),
		})))

	m, err := s.HGetAll(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["dim"] != "768" || m["metric"] != "cosine" {
		t.Errorf("unexpected fields: %v", m)
	}
}

func TestScan_MultiPage(t *testing.T) {
	s, c := newMockStore(t)

	first := true
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "SCAN" })).
		DoAndReturn(func(_ context.Context, _ rueidis.Completed) rueidis.RedisResult {
			if first {
				first = false
				return mock.Result(mock.RedisArray(
					mock.RedisInt64(42),
					mock.RedisArray(mock.RedisString("key1")),
				))
			}
			return mock.Result(mock.RedisArray(
				mock.RedisInt64(0),
				mock.RedisArray(mock.RedisString("key2")),
			))
		}).Times(2)

	keys, err := s.Scan(context.Background(), "prefix:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[0] != "key1" || keys[1] != "key2" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

// --- index.go ---

func TestCreateIndex_Args(t *testing.T) {
	s, c := newMockStore(t)

	var got []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
		DoAndReturn(func(_ context.Context, cmd rueidis.Completed) rueidis.RedisResult {
			got = cmd.Commands()
			return mock.Result(mock.RedisString("OK"))
		})

	def, err := db.NewIndex("pdfrag:idx:docs").
		Prefix("pdfrag:docs:").
		Tag("document_id").
		VectorHNSW("vector", 4, db.DistanceCosine, 16, 0).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := s.CreateIndex(context.Background(), def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "FT.CREATE pdfrag:idx:docs ON HASH PREFIX 1 pdfrag:docs: SCHEMA document_id TAG " +
		"vector VECTOR HNSW 8 TYPE FLOAT32 DIM 4 DISTANCE_METRIC COSINE M 16"
	if strings.Join(got, " ") != want {
		t.Errorf("unexpected command:\ngot:  %s\nwant: %s", strings.Join(got, " "), want)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
		Return(mock.Result(mock.RedisError("Index already exists")))

	def := &db.IndexDefinition{Name: "idx", Fields: []db.IndexField{{Name: "f", Type: db.IndexFieldTag}}}
	if err := s.CreateIndex(context.Background(), def); !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestCreateIndex_InvalidDefinition(t *testing.T) {
	s, _ := newMockStore(t)
	if err := s.CreateIndex(context.Background(), &db.IndexDefinition{Name: "idx"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().Do(gomock.Any(), mock.Match("FT.DROPINDEX", "idx")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	if err := s.DropIndex(context.Background(), "idx"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	tests := []struct {
		name  string
		reply rueidis.RedisResult
		want  bool
	}{
		{"present", mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("idx"))), true},
		{"absent", mock.Result(mock.RedisError("Unknown Index name")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newMockStore(t)
			c.EXPECT().Do(gomock.Any(), mock.Match("FT.INFO", "idx")).Return(tt.reply)

			got, err := s.IndexExists(context.Background(), "idx")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// --- search.go ---

func TestSearchKNN(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "idx" &&
				cmd[2] == "*=>[KNN 3 @vector $BLOB AS __vector_score]"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("doc:1"),
			mock.RedisArray(
				mock.RedisString("text"), mock.RedisString("hello"),
				mock.RedisString("__vector_score"), mock.RedisString("0.1"),
			),
			mock.RedisString("doc:2"),
			mock.RedisArray(
				mock.RedisString("text"), mock.RedisString("world"),
				mock.RedisString("__vector_score"), mock.RedisString("1.5"),
			),
		)))

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "idx",
		Vector:       []float32{0.1, 0.2},
		K:            3,
		ReturnFields: []string{"text"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 2 || len(res.Entries) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if e := res.Entries[0]; e.Key != "doc:1" || e.Fields["text"] != "hello" || e.Score < 0.89 || e.Score > 0.91 {
		t.Errorf("unexpected first entry: %+v", e)
	}
	if _, ok := res.Entries[0].Fields["__vector_score"]; ok {
		t.Error("score field should be stripped")
	}
	if res.Entries[1].Score != 0 {
		t.Errorf("similarity must be clamped at 0, got %f", res.Entries[1].Score)
	}
}

func TestSearchKNN_Empty(t *testing.T) {
	s, c := newMockStore(t)
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(res.Entries))
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s, _ := newMockStore(t)
	for _, q := range []*db.KNNQuery{
		{Vector: []float32{1}, K: 1},
		{IndexName: "idx", K: 1},
		{IndexName: "idx", Vector: []float32{1}},
	} {
		if _, err := s.SearchKNN(context.Background(), q); err == nil {
			t.Errorf("expected validation error for %+v", q)
		}
	}
}

func TestVectorBytesRoundTrip(t *testing.T) {
	in := []float32{1.5, -2.25, 0}
	out, err := BytesToVector([]byte(VectorToBytes(in)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("[%d] = %f, want %f", i, out[i], in[i])
		}
	}
	if _, err := BytesToVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
