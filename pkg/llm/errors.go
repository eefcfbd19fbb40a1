package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrMissingAPIKey indicates the provider was called without credentials.
// Submissions still work; the task fails with a configuration error.
var ErrMissingAPIKey = errors.New("llm: API key not configured")

// ErrEmptyCompletion indicates the provider returned no usable text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// ProviderError is a non-2xx answer from the provider API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Transient reports whether retrying the same call may succeed: rate
// limits, request timeouts, and server-side errors. Auth and bad-request
// failures are final.
func (e *ProviderError) Transient() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode == http.StatusRequestTimeout:
		return true
	case e.StatusCode >= 500 && e.StatusCode <= 599:
		return true
	}
	return false
}

// IsTransient reports whether an error is worth retrying: transient
// provider errors, network failures, and per-call deadline expiry. The
// caller's own cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	// A per-call timeout wraps context.DeadlineExceeded; distinguish it
	// from caller cancellation, which must abort immediately.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
