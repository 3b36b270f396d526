package domain

// Chunk is one overlapping word window of a document. Ordinal is the window index; the window
// starts at word Ordinal*stride of the normalized text.
type Chunk struct {
	Text      string
	Ordinal   int
	StartWord int
}
