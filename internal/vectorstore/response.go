package vectorstore

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// Response is the closed set of shapes a query answer can take.
type Response interface{ isResponse() }

// PointsResponse is an object exposing the ranked list in a points field.
type PointsResponse struct {
	Points []Hit
}

// ListResponse is a bare ranked list.
type ListResponse []Hit

// TupleResponse is a tuple whose first element is the ranked list.
type TupleResponse struct {
	Items []Hit
	Rest  []any
}

// RawResponse is an answer none of the known shapes matched. It normalizes to nothing.
type RawResponse struct {
	Body json.RawMessage
}

func (PointsResponse) isResponse() {}
func (ListResponse) isResponse()   {}
func (TupleResponse) isResponse()  {}
func (RawResponse) isResponse()    {}

// Hit is the closed set of shapes a single ranked item can take.
type Hit interface{ isHit() }

// ScoredPoint is an item carrying an explicit score.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload domain.Payload
}

// TupleHit is an (id, payload, ...) item. The first numeric value in Extra is the score.
type TupleHit struct {
	ID      string
	Payload domain.Payload
	Extra   []any
}

func (ScoredPoint) isHit() {}
func (TupleHit) isHit()    {}

// Normalize maps any Response to matches in rank order.
// Nil, unknown and malformed shapes yield an empty, non-nil slice.
func Normalize(resp Response) []domain.Match {
	var hits []Hit
	switch r := resp.(type) {
	case PointsResponse:
		hits = r.Points
	case *PointsResponse:
		if r != nil {
			hits = r.Points
		}
	case ListResponse:
		hits = r
	case TupleResponse:
		hits = r.Items
	case *TupleResponse:
		if r != nil {
			hits = r.Items
		}
	}

	out := make([]domain.Match, 0, len(hits))
	for _, h := range hits {
		if m, ok := normalizeHit(h); ok {
			out = append(out, m)
		}
	}
	return out
}

func normalizeHit(h Hit) (domain.Match, bool) {
	switch v := h.(type) {
	case ScoredPoint:
		return domain.Match{ID: v.ID, Score: v.Score, Payload: nonNil(v.Payload)}, true
	case *ScoredPoint:
		if v == nil {
			return domain.Match{}, false
		}
		return domain.Match{ID: v.ID, Score: v.Score, Payload: nonNil(v.Payload)}, true
	case TupleHit:
		return domain.Match{ID: v.ID, Score: firstScore(v.Extra), Payload: nonNil(v.Payload)}, true
	case *TupleHit:
		if v == nil {
			return domain.Match{}, false
		}
		return domain.Match{ID: v.ID, Score: firstScore(v.Extra), Payload: nonNil(v.Payload)}, true
	default:
		return domain.Match{}, false
	}
}

func firstScore(extra []any) float64 {
	for _, e := range extra {
		switch n := e.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f
			}
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func nonNil(p domain.Payload) domain.Payload {
	if p == nil {
		return domain.Payload{}
	}
	return p
}

// RankedList builds a ListResponse of ScoredPoints sorted by descending score.
// Ties keep insertion order.
func RankedList(points []ScoredPoint, k int) ListResponse {
	sorted := make([]ScoredPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if k >= 0 && len(sorted) > k {
		sorted = sorted[:k]
	}
	out := make(ListResponse, len(sorted))
	for i := range sorted {
		out[i] = sorted[i]
	}
	return out
}
