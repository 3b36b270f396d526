package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
)

// pointNamespace scopes deterministic point ids so they never collide with random UUIDs.
var pointNamespace = uuid.MustParse("6f1c3f0e-2b8e-5d4a-9c57-3a1f0e7b2d90")

// Payload keys stored next to each vector.
const (
	PayloadText       = "text"
	PayloadDocumentID = "document_id"
	PayloadOrdinal    = "ordinal"
	PayloadStartWord  = "start_word"
	PayloadSource     = "source"
)

// Payload is the metadata stored with a vector.
type Payload map[string]any

// Text returns the chunk text, or "" when absent or not a string.
func (p Payload) Text() string {
	s, _ := p[PayloadText].(string)
	return s
}

// Point is a vector with its identity and payload, ready for upsert.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Fingerprint returns a stable identifier for document content.
func Fingerprint(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// PointID derives the identifier of a chunk from its document fingerprint and ordinal,
// so re-ingesting the same document overwrites its points.
func PointID(fingerprint string, ordinal int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fingerprint+":"+strconv.Itoa(ordinal))).String()
}
