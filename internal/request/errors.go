package request

import (
	"errors"
	"fmt"
)

// AuthError reports a 401/403 response when no refresh capability was
// supplied, so rotation was impossible.
type AuthError struct {
	Status int
	Path   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error %d on %s (no token refresh available)", e.Status, e.Path)
}

// AuthExhaustedError reports that the whole token-rotation schedule ran
// out without a successful call. Status is the last 401/403 observed.
type AuthExhaustedError struct {
	Status int
	Path   string
	Err    error
}

func (e *AuthExhaustedError) Error() string {
	return fmt.Sprintf("auth retries exhausted with status %d on %s: %v", e.Status, e.Path, e.Err)
}

func (e *AuthExhaustedError) Unwrap() error { return e.Err }

// RateLimitExhaustedError reports a 429 that persisted through the
// whole backoff schedule.
type RateLimitExhaustedError struct {
	Path string
	Err  error
}

func (e *RateLimitExhaustedError) Error() string {
	return fmt.Sprintf("rate limit retries exhausted on %s: %v", e.Path, e.Err)
}

func (e *RateLimitExhaustedError) Unwrap() error { return e.Err }

// NotFoundError is a 404. Never retried; callers decide whether it is
// fatal.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Path)
}

// RequestError is any other failed call. Status 0 means the request
// never produced an HTTP response (network/transport error).
type RequestError struct {
	Status int
	Path   string
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request failed on %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("request failed with status %d on %s: %v", e.Status, e.Path, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ErrorStatus extracts the underlying HTTP status of a classified
// error, 0 when none applies.
func ErrorStatus(err error) int {
	var (
		auth      *AuthError
		exhausted *AuthExhaustedError
		rated     *RateLimitExhaustedError
		notFound  *NotFoundError
		reqErr    *RequestError
	)
	switch {
	case errors.As(err, &auth):
		return auth.Status
	case errors.As(err, &exhausted):
		return exhausted.Status
	case errors.As(err, &rated):
		return 429
	case errors.As(err, &notFound):
		return 404
	case errors.As(err, &reqErr):
		return reqErr.Status
	}
	return 0
}

// IsRetryable reports whether an error should trigger a chunk-level
// retry: no HTTP status at all, or a server-side 5xx. Client-side 4xx
// failures are data or authorization problems and are never retried at
// chunk granularity.
func IsRetryable(err error) bool {
	status := ErrorStatus(err)
	return status == 0 || status >= 500
}
