package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultRetryBase = 200 * time.Millisecond
	maxRetryDelay    = 5 * time.Second
)

// retryDelay returns the backoff before retry number attempt (0-based).
func retryDelay(base time.Duration, attempt int) time.Duration {
	if attempt > 30 {
		return maxRetryDelay
	}
	d := base << attempt
	if d <= 0 || d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// statusCode extracts the HTTP status of a failed API call, or 0.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// retryable reports whether a failed call may succeed when repeated.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	code := statusCode(err)
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// withRetry runs call until it succeeds, fails permanently, or retries run out.
// Cancellation stops the loop immediately.
func withRetry(ctx context.Context, maxRetries int, base time.Duration, call func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = call(ctx); err == nil {
			return nil
		}
		if attempt >= maxRetries || !retryable(err) {
			return err
		}

		timer := time.NewTimer(retryDelay(base, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (retry aborted: %w)", err, ctx.Err())
		case <-timer.C:
		}
	}
}

// describe builds an operation label carrying the HTTP status when known.
func describe(op string, err error) string {
	if code := statusCode(err); code != 0 {
		return fmt.Sprintf("%s (HTTP %d)", op, code)
	}
	return op
}
