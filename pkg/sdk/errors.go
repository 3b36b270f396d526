package pdfrag

import "github.com/kailas-cloud/pdfrag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrConfiguration      = domain.ErrConfiguration
	ErrIntegration        = domain.ErrIntegration
	ErrRemoteService      = domain.ErrRemoteService
	ErrCanceled           = domain.ErrCanceled
	ErrVectorDimMismatch  = domain.ErrVectorDimMismatch
	ErrEmbeddingProvider  = domain.ErrEmbeddingProvider
	ErrGenerationProvider = domain.ErrGenerationProvider
	ErrVectorStore        = domain.ErrVectorStore
	ErrEmptyDocument      = domain.ErrEmptyDocument
	ErrInvalidInput       = domain.ErrInvalidInput
)
