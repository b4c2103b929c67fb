package fetcher

import (
	"errors"
	"fmt"
)

// ErrExhausted signals that a Pager has no further pages. It is the
// normal end of pagination, never a failure; Collect reclassifies it
// as success-with-early-stop.
var ErrExhausted = errors.New("pagination exhausted")

// AuthError represents a credential failure (401/403 or a missing
// credential). It is fatal to the run and never retried.
type AuthError struct {
	Source  string
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth error for %s: %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("auth error for %s: %s", e.Source, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// RateLimitError represents an HTTP 429 or a provider quota signal.
// It is retryable under the backoff policy.
type RateLimitError struct {
	Source  string
	Message string
	Cause   error
}

func (e *RateLimitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("rate limited at %s: %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("rate limited at %s: %s", e.Source, e.Message)
}

func (e *RateLimitError) Unwrap() error {
	return e.Cause
}

// TransientError represents a 5xx response or a network-level failure.
// It is retryable under the backoff policy.
type TransientError struct {
	Source  string
	Message string
	Cause   error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient error at %s: %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("transient error at %s: %s", e.Source, e.Message)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// FetchFailedError represents a page call whose retry budget was
// exhausted. It aborts the run for its source only; other sources in
// the same run still attempt to complete.
type FetchFailedError struct {
	Source   string
	Attempts int
	Cause    error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("fetch failed for %s after %d attempts: %v", e.Source, e.Attempts, e.Cause)
}

func (e *FetchFailedError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether err is worth another attempt under the
// backoff policy. Auth errors, malformed responses, and ErrExhausted
// are not.
func IsRetryable(err error) bool {
	var rateLimited *RateLimitError
	var transient *TransientError
	return errors.As(err, &rateLimited) || errors.As(err, &transient)
}
