// Package ingest turns a PDF into stored, embedded chunks.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/chunker"
	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/logger"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
)

// Result summarizes one ingested document.
type Result struct {
	DocumentID     string
	ChunksUploaded int
}

// Service runs extract → normalize → chunk → embed → upload.
type Service struct {
	extractor  TextExtractor
	chunker    Chunker
	embedder   DocumentEmbedder
	store      PointWriter
	collection string
}

// New creates an ingestion Service writing into collection.
func New(extractor TextExtractor, ch Chunker, embedder DocumentEmbedder, store PointWriter, collection string) *Service {
	return &Service{
		extractor:  extractor,
		chunker:    ch,
		embedder:   embedder,
		store:      store,
		collection: collection,
	}
}

// IngestFile ingests the PDF at path. source is recorded in every chunk payload.
func (s *Service) IngestFile(ctx context.Context, path, source string) (Result, error) {
	run := s.start(ctx, source)
	text, err := s.extractor.ExtractFile(run.ctx, path)
	if err != nil {
		return Result{}, run.fail(fmt.Errorf("extract %s: %w", source, err))
	}
	return s.fromText(run, text)
}

// IngestBytes ingests an in-memory PDF.
func (s *Service) IngestBytes(ctx context.Context, data []byte, source string) (Result, error) {
	run := s.start(ctx, source)
	if len(data) == 0 {
		return Result{}, run.fail(fmt.Errorf("%s: %w", source, domain.ErrEmptyDocument))
	}
	text, err := s.extractor.Extract(run.ctx, data)
	if err != nil {
		return Result{}, run.fail(fmt.Errorf("extract %s: %w", source, err))
	}
	return s.fromText(run, text)
}

func (s *Service) fromText(run *run, raw string) (Result, error) {
	run.advance(StageExtracted)

	text := chunker.Normalize(raw)
	docID := domain.Fingerprint(text)
	run.ctx = logger.With(run.ctx, zap.String("document_id", docID))
	run.advance(StageNormalized)

	chunks := chunker.NonBlank(s.chunker.Chunk(text))
	run.advance(StageChunked, zap.Int("chunks", len(chunks)))

	if len(chunks) == 0 {
		logger.FromContext(run.ctx).Warn("Document has no text, nothing to upload")
		run.finish(0)
		return Result{DocumentID: docID}, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := s.embedder.EmbedDocuments(run.ctx, texts)
	if err != nil {
		return Result{}, run.fail(err)
	}
	run.advance(StageEmbedded)

	if len(vectors) != len(chunks) {
		return Result{}, run.fail(fmt.Errorf("%d chunks but %d vectors: %w",
			len(chunks), len(vectors), domain.ErrCountMismatch))
	}

	points := make([]domain.Point, len(chunks))
	for i, ch := range chunks {
		points[i] = domain.Point{
			ID:     domain.PointID(docID, ch.Ordinal),
			Vector: vectors[i],
			Payload: domain.Payload{
				domain.PayloadText:       ch.Text,
				domain.PayloadDocumentID: docID,
				domain.PayloadOrdinal:    ch.Ordinal,
				domain.PayloadStartWord:  ch.StartWord,
				domain.PayloadSource:     run.source,
			},
		}
	}
	if err := s.store.Upsert(run.ctx, s.collection, points); err != nil {
		return Result{}, run.fail(err)
	}
	run.advance(StageUploaded)

	run.finish(len(points))
	return Result{DocumentID: docID, ChunksUploaded: len(points)}, nil
}

// run tracks the state of one ingestion.
type run struct {
	ctx    context.Context
	source string
	stage  Stage
}

func (s *Service) start(ctx context.Context, source string) *run {
	ctx = logger.With(ctx, zap.String("source", source), zap.String("collection", s.collection))
	logger.FromContext(ctx).Info("Ingesting document")
	return &run{ctx: ctx, source: source, stage: StageReceived}
}

func (r *run) advance(to Stage, fields ...zap.Field) {
	r.stage = to
	logger.FromContext(r.ctx).Debug("Ingest stage reached", append(fields, zap.String("stage", string(to)))...)
}

func (r *run) fail(err error) error {
	metrics.IngestDocumentsTotal.WithLabelValues(string(StageFailed)).Inc()
	logger.FromContext(r.ctx).Error("Ingest failed", zap.String("stage", string(r.stage)), zap.Error(err))
	return &StageError{Stage: r.stage, Err: err}
}

func (r *run) finish(uploaded int) {
	r.stage = StageDone
	metrics.IngestDocumentsTotal.WithLabelValues(string(StageDone)).Inc()
	metrics.IngestChunksTotal.Add(float64(uploaded))
	logger.FromContext(r.ctx).Info("Document ingested", zap.Int("chunks_uploaded", uploaded))
}
