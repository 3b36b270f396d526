// Package chunker splits normalized text into overlapping fixed-size word windows.
package chunker

import (
	"strings"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// Default window parameters, in words.
const (
	DefaultSize    = 400
	DefaultOverlap = 50
)

// Chunker slides a window of size words over a text, advancing size-overlap words per step.
type Chunker struct {
	size    int
	overlap int
}

// New validates the window parameters. overlap must be in [0, size).
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, domain.ConfigError("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, domain.ConfigError("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, domain.ConfigError("chunk overlap %d must be smaller than size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window size in words.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of words shared by adjacent windows.
func (c *Chunker) Overlap() int { return c.overlap }

// Stride returns the number of words the window advances per step.
func (c *Chunker) Stride() int { return c.size - c.overlap }

// Chunk splits text on whitespace into windows. Every window holds size words except possibly
// the last; a text shorter than size yields exactly one window and an empty text yields none.
// The window stops once it reaches the last word, so no trailing window is fully contained
// in its predecessor.
func (c *Chunker) Chunk(text string) []domain.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	stride := c.Stride()
	chunks := make([]domain.Chunk, 0, expectedCount(len(words), c.overlap, stride))

	for start, ordinal := 0, 0; ; start, ordinal = start+stride, ordinal+1 {
		end := min(start+c.size, len(words))
		chunks = append(chunks, domain.Chunk{
			Text:      strings.Join(words[start:end], " "),
			Ordinal:   ordinal,
			StartWord: start,
		})
		if end == len(words) {
			break
		}
	}

	return chunks
}

// NonBlank drops chunks whose text is empty or whitespace only, keeping order and ordinals.
func NonBlank(chunks []domain.Chunk) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if strings.TrimSpace(ch.Text) != "" {
			out = append(out, ch)
		}
	}
	return out
}

// expectedCount is ceil(max(0, n-overlap)/stride), with at least one window for a non-empty text.
func expectedCount(n, overlap, stride int) int {
	rest := n - overlap
	if rest <= 0 {
		return 1
	}
	return (rest + stride - 1) / stride
}
