package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	ingestuc "github.com/kailas-cloud/pdfrag/internal/usecase/ingest"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeTooLarge           ErrorCode = "payload_too_large"
	CodeEmptyDocument      ErrorCode = "empty_document"
	CodeUnreadableDocument ErrorCode = "unreadable_document"
	CodeConfiguration      ErrorCode = "configuration_error"
	CodeIntegration        ErrorCode = "integration_error"
	CodeEmbeddingProvider  ErrorCode = "embedding_provider_error"
	CodeGenerationProvider ErrorCode = "generation_provider_error"
	CodeVectorStore        ErrorCode = "vector_store_error"
	CodeTimeout            ErrorCode = "timeout"
	CodeInternal           ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The client sees the sentinel text, never the wrapped chain.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func canceledHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrCanceled) &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	writeError(w, http.StatusGatewayTimeout, CodeTimeout, domain.ErrCanceled.Error())
	return true
}

// unreadableDocumentHandler answers 422 when ingestion failed before any text was extracted.
func unreadableDocumentHandler(w http.ResponseWriter, err error) bool {
	var se *ingestuc.StageError
	if !errors.As(err, &se) || se.Stage != ingestuc.StageReceived {
		return false
	}
	writeError(w, http.StatusUnprocessableEntity, CodeUnreadableDocument, "could not read PDF")
	return true
}
