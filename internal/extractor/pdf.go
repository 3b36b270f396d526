// Package extractor converts PDF documents into raw text.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/logger"
)

// pageSource is the part of a parsed PDF the extractor reads.
type pageSource interface {
	NumPage() int
	PageText(i int) (string, error)
}

type pdfPages struct {
	r *pdf.Reader
}

func (p pdfPages) NumPage() int { return p.r.NumPage() }

func (p pdfPages) PageText(i int) (text string, err error) {
	page := p.r.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	// The parser panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: malformed content: %v", i, rec)
		}
	}()
	return page.GetPlainText(nil)
}

// PDF extracts the text layer of PDF files page by page.
type PDF struct{}

// NewPDF creates a PDF text extractor.
func NewPDF() *PDF { return &PDF{} }

// ExtractFile reads the PDF at path.
func (e *PDF) ExtractFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read pdf %s: %w", path, err)
	}
	return e.Extract(ctx, data)
}

// Extract parses PDF bytes and returns the text of every page followed by a newline.
// Pages without a text layer contribute an empty line.
func (e *PDF) Extract(ctx context.Context, data []byte) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("parse pdf: %v", rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	return joinPages(ctx, pdfPages{r: r})
}

func joinPages(ctx context.Context, src pageSource) (string, error) {
	log := logger.FromContext(ctx)

	var b strings.Builder
	n := src.NumPage()
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		pageText, err := src.PageText(i)
		if err != nil {
			log.Warn("Skipping unreadable page", zap.Int("page", i), zap.Error(err))
			pageText = ""
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return b.String(), nil
}
