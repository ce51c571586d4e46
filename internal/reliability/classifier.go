// Package reliability classifies upstream failures so the completion gateway
// only retries what can plausibly succeed on a second attempt.
package reliability

import (
	"context"
	"errors"
	"net"

	openai "github.com/sashabaranov/go-openai"
)

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsTransient reports whether a completion call failure is worth retrying.
// Rate limits, server errors, timeouts, and network faults are transient;
// auth failures and malformed requests are not. A cancelled context is never
// transient since nobody is waiting for the answer anymore.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return IsRetryableHTTPStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return IsRetryableHTTPStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Anything else that escaped the client is transport-level noise
	// (connection reset, DNS hiccup); give it another attempt.
	return true
}
