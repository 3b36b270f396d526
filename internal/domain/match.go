package domain

// Match is one ranked nearest-neighbor hit, normalized across vector store backends.
type Match struct {
	ID      string
	Score   float64
	Payload Payload
}
