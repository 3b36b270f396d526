package vectorstore

import (
	"bytes"
	"encoding/json"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// DecodeJSON sniffs the shape of a JSON query result:
//
//	{"points": [...]}        → PointsResponse
//	[[...hits], ...rest]     → TupleResponse
//	[...hits]                → ListResponse
//	anything else            → RawResponse
//
// Hits are objects {id, score, payload} or arrays [id, payload, ...extra].
// Items that match neither are skipped.
func DecodeJSON(raw json.RawMessage) Response {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return RawResponse{Body: raw}
	}

	switch trimmed[0] {
	case '{':
		var obj struct {
			Points *[]json.RawMessage `json:"points"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil || obj.Points == nil {
			return RawResponse{Body: raw}
		}
		return PointsResponse{Points: decodeHits(*obj.Points)}

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return RawResponse{Body: raw}
		}
		if isTuple(items) {
			var inner []json.RawMessage
			_ = json.Unmarshal(items[0], &inner)
			rest := make([]any, 0, len(items)-1)
			for _, it := range items[1:] {
				var v any
				_ = json.Unmarshal(it, &v)
				rest = append(rest, v)
			}
			return TupleResponse{Items: decodeHits(inner), Rest: rest}
		}
		return ListResponse(decodeHits(items))
	}
	return RawResponse{Body: raw}
}

// isTuple reports whether the first element is itself a list of hits rather than a hit id.
func isTuple(items []json.RawMessage) bool {
	if len(items) == 0 {
		return false
	}
	first := bytes.TrimSpace(items[0])
	if len(first) == 0 || first[0] != '[' {
		return false
	}
	var inner []json.RawMessage
	if err := json.Unmarshal(first, &inner); err != nil {
		return false
	}
	if len(inner) == 0 {
		return true
	}
	c := bytes.TrimSpace(inner[0])
	return len(c) > 0 && (c[0] == '{' || c[0] == '[')
}

func decodeHits(items []json.RawMessage) []Hit {
	hits := make([]Hit, 0, len(items))
	for _, it := range items {
		if h, ok := decodeHit(it); ok {
			hits = append(hits, h)
		}
	}
	return hits
}

func decodeHit(raw json.RawMessage) (Hit, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false
	}

	switch trimmed[0] {
	case '{':
		var p struct {
			ID      json.RawMessage `json:"id"`
			Score   *float64        `json:"score"`
			Payload domain.Payload  `json:"payload"`
		}
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, false
		}
		var score float64
		if p.Score != nil {
			score = *p.Score
		}
		return ScoredPoint{ID: idString(p.ID), Score: score, Payload: p.Payload}, true

	case '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(trimmed, &parts); err != nil || len(parts) < 2 {
			return nil, false
		}
		var payload domain.Payload
		if err := json.Unmarshal(parts[1], &payload); err != nil {
			return nil, false
		}
		extra := make([]any, 0, len(parts)-2)
		for _, p := range parts[2:] {
			var v any
			if json.Unmarshal(p, &v) == nil {
				extra = append(extra, v)
			}
		}
		return TupleHit{ID: idString(parts[0]), Payload: payload, Extra: extra}, true
	}
	return nil, false
}

// idString renders string and numeric ids uniformly.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return string(raw)
}
