package domain

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Callers classify failures with errors.Is against these.
var (
	// ErrConfiguration signals invalid settings (chunk parameters, missing credentials).
	ErrConfiguration = errors.New("configuration error")
	// ErrIntegration signals a broken contract between pipeline stages.
	ErrIntegration = errors.New("integration error")
	// ErrRemoteService signals a failure of an external service.
	ErrRemoteService = errors.New("remote service error")
	// ErrCanceled signals that a remote call was canceled or timed out.
	ErrCanceled = errors.New("operation canceled")
)

var (
	// ErrVectorDimMismatch signals a vector whose length differs from the collection dimension.
	ErrVectorDimMismatch = fmt.Errorf("vector dimension mismatch: %w", ErrIntegration)
	// ErrCountMismatch signals that a stage returned a different number of items than it received.
	ErrCountMismatch = fmt.Errorf("count mismatch: %w", ErrIntegration)

	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = fmt.Errorf("embedding provider: %w", ErrRemoteService)
	// ErrGenerationProvider signals a generative model failure.
	ErrGenerationProvider = fmt.Errorf("generation provider: %w", ErrRemoteService)
	// ErrVectorStore signals a vector store failure.
	ErrVectorStore = fmt.Errorf("vector store: %w", ErrRemoteService)

	// ErrEmptyDocument signals that a document has no extractable text.
	ErrEmptyDocument = errors.New("document has no text")
	// ErrInvalidInput signals a malformed request from the caller.
	ErrInvalidInput = errors.New("invalid input")
)

// ConfigError builds an ErrConfiguration with a formatted detail.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConfiguration)
}

// WrapRemote classifies err from a remote call: context cancellation and deadlines become
// ErrCanceled, everything else is wrapped with kind.
func WrapRemote(ctx context.Context, kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		(ctx != nil && ctx.Err() != nil) {
		return fmt.Errorf("%s: %w: %w", op, ErrCanceled, err)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
