// Package chi is the HTTP front door: PDF upload, question answering, health and metrics.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/logger"
	healthuc "github.com/kailas-cloud/pdfrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/pdfrag/internal/usecase/ingest"
)

// DefaultMaxUploadBytes caps the multipart body of POST /upload.
const DefaultMaxUploadBytes int64 = 32 << 20

// multipartMemory is the part of an upload kept in memory before spilling to disk.
const multipartMemory = 8 << 20

// Ingester stores an uploaded PDF.
type Ingester interface {
	IngestFile(ctx context.Context, path, source string) (ingestuc.Result, error)
}

// Answerer answers a question from stored documents.
type Answerer interface {
	Search(ctx context.Context, query string, k int) (domain.Answer, error)
}

// HealthChecker reports component availability.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Config holds upload limits.
type Config struct {
	MaxUploadBytes int64
	// UploadDir receives transient upload files. Empty means os.TempDir().
	UploadDir string
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the pdfrag HTTP API.
type Server struct {
	ingest        Ingester
	answers       Answerer
	health        HealthChecker
	logger        *zap.Logger
	cfg           Config
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(ingest Ingester, answers Answerer, health HealthChecker, cfg Config, logger *zap.Logger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{
		ingest:  ingest,
		answers: answers,
		health:  health,
		logger:  logger,
		cfg:     cfg,
	}
	s.errorHandlers = []errorHandler{
		canceledHandler,
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrEmptyDocument, http.StatusBadRequest, CodeEmptyDocument),
		unreadableDocumentHandler,
		sentinelHandler(domain.ErrConfiguration, http.StatusInternalServerError, CodeConfiguration),
		sentinelHandler(domain.ErrIntegration, http.StatusInternalServerError, CodeIntegration),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, CodeEmbeddingProvider),
		sentinelHandler(domain.ErrGenerationProvider, http.StatusBadGateway, CodeGenerationProvider),
		sentinelHandler(domain.ErrVectorStore, http.StatusBadGateway, CodeVectorStore),
	}
	return s
}

// Index handles GET /.
func (s *Server) Index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "RAG backend running"})
}

type uploadResponse struct {
	Status         string `json:"status"`
	ChunksUploaded int    `json:"chunks_uploaded"`
	DocumentID     string `json:"document_id"`
}

// Upload handles POST /upload with a multipart "file" field.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "expected multipart form with a file field")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	path, err := s.spool(file, header)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to store upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
		return
	}
	defer s.remove(r.Context(), path)

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.ingest.IngestFile(ctx, path, filepath.Base(header.Filename))
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Status:         "success",
		ChunksUploaded: res.ChunksUploaded,
		DocumentID:     res.DocumentID,
	})
}

// spool copies an uploaded file to UploadDir and returns its path.
func (s *Server) spool(src multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".pdf"
	}
	dst, err := os.CreateTemp(s.cfg.UploadDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return dst.Name(), nil
}

func (s *Server) remove(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.FromContext(ctx).Warn("Failed to remove upload", zap.String("path", path), zap.Error(err))
	}
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

// Search handles POST /search. Accepts form fields q and k, or a JSON body {query, k}.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSearch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	answer, err := s.answers.Search(ctx, req.Query, req.K)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func decodeSearch(r *http.Request) (searchRequest, error) {
	var req searchRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid request body: %w", err)
		}
		return req, nil
	}

	parse := r.ParseForm
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		parse = func() error { return r.ParseMultipartForm(multipartMemory) }
	}
	if err := parse(); err != nil {
		return req, fmt.Errorf("invalid form: %w", err)
	}
	req.Query = r.Form.Get("q")
	if raw := r.Form.Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("k must be an integer, got %q", raw)
		}
		req.K = k
	}
	return req, nil
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Calls > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContext(ctx)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
