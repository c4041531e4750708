package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of a fetch engine failure
type ErrorType string

const (
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypePermanentHTTP ErrorType = "permanent_http"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeCancelled     ErrorType = "cancelled"
	ErrorTypeParsing       ErrorType = "parsing"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Error is a typed engine error. Code carries the HTTP status when there is one.
type Error struct {
	Type       ErrorType
	Message    string
	Code       int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Network wraps a transport failure (timeout, connection reset, truncated body)
func Network(err error) *Error {
	return &Error{Type: ErrorTypeNetwork, Err: err}
}

// RateLimited records an HTTP 429. retryAfter is zero when the server sent no hint.
func RateLimited(code int, retryAfter time.Duration) *Error {
	return &Error{
		Type:       ErrorTypeRateLimit,
		Message:    "too many requests",
		Code:       code,
		RetryAfter: retryAfter,
	}
}

// PermanentHTTP records a non-200, non-429 response
func PermanentHTTP(code int, status string) *Error {
	return &Error{Type: ErrorTypePermanentHTTP, Message: status, Code: code}
}

// Storage wraps a cache or destination file I/O failure
func Storage(op string, err error) *Error {
	return &Error{Type: ErrorTypeStorage, Message: op, Err: err}
}

// Configuration reports a malformed job descriptor
func Configuration(format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Cancelled wraps a context cancellation
func Cancelled(err error) *Error {
	return &Error{Type: ErrorTypeCancelled, Err: err}
}

// Parsing wraps a decode failure of a remote document
func Parsing(err error) *Error {
	return &Error{Type: ErrorTypeParsing, Err: err}
}

// TypeOf returns the ErrorType carried by err, looking through wrapping.
// Context errors map to ErrorTypeCancelled, nil to "".
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeCancelled
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given ErrorType
func Is(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code is worth another request.
// Only 429 qualifies: other statuses are content errors and fail permanently.
func IsRetryableStatusCode(statusCode int) bool {
	return statusCode == 429
}
