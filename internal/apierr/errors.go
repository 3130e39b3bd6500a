// Package apierr provides shared error sentinels, classification, and retry
// infrastructure for the OpenAI-backed capabilities (transcription engine,
// reformatter, summarizer). Provider errors are classified into these
// sentinels at the adapter boundary; callers check with errors.Is.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Sentinel errors for API interaction failures.
var (
	// ErrRateLimit indicates the API rate limit was exceeded (temporary, retryable).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrQuotaExceeded indicates the API quota was exceeded (billing issue, not retryable).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates a request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrAuthFailed indicates API authentication failed (invalid key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadRequest indicates a client error (4xx) that is not otherwise classified.
	ErrBadRequest = errors.New("bad request")

	// ErrEmptyResponse indicates the API returned a success status with no usable content.
	ErrEmptyResponse = errors.New("empty response")
)

// Classify maps OpenAI API errors to sentinel errors.
// Errors that are already classified or unknown are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			// Distinguish a temporary rate limit from quota exhaustion.
			// Quota exhaustion requires user action and must not be retried.
			if strings.Contains(apiErr.Message, "quota") ||
				strings.Contains(apiErr.Message, "billing") {
				return fmt.Errorf("%s: %w", apiErr.Message, ErrQuotaExceeded)
			}
			return fmt.Errorf("%s: %w", apiErr.Message, ErrRateLimit)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrAuthFailed)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrTimeout)
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			// Transient server errors classify as timeouts so they retry.
			return fmt.Errorf("%s: %w", apiErr.Message, ErrTimeout)
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%s: %w", apiErr.Message, ErrBadRequest)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", ErrTimeout)
	}

	return err
}

// Retryable reports whether an error is transient and worth retrying.
// Rate limits and timeouts retry; auth failures, quota exhaustion, and bad
// requests do not. Cancellation wins over any transient sentinel in the
// same chain: an aborted call must not be retried.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout)
}
