package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType classifies failures coming back from the Instagram API and the
// automation runs built on top of it.
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeCancelled   ErrorType = "cancelled"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an API or automation error with type information.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New builds a typed error.
func New(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Code: code}
}

// TypeOf extracts the error type from err, or ErrorTypeUnknown if err is not
// a typed error. Context cancellation maps to ErrorTypeCancelled so aborted
// runs are never misreported as failures.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type
	}
	if errors.Is(err, context.Canceled) {
		return ErrorTypeCancelled
	}
	return ErrorTypeUnknown
}

// IsCancelled reports whether err resulted from a cancelled run, either via
// an explicit cancellation error or an underlying context.Canceled.
func IsCancelled(err error) bool {
	return TypeOf(err) == ErrorTypeCancelled
}

// IsAuth reports whether err is an authentication failure (401/403 class).
func IsAuth(err error) bool {
	return TypeOf(err) == ErrorTypeAuth
}

// IsRetryable checks if an error type should be retried.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable
// error.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // network error, no response
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// FromStatusCode maps an HTTP status code to a typed error.
func FromStatusCode(statusCode int, message string) *Error {
	var t ErrorType
	switch {
	case statusCode == 429:
		t = ErrorTypeRateLimit
	case statusCode == 401 || statusCode == 403:
		t = ErrorTypeAuth
	case statusCode == 404:
		t = ErrorTypeNotFound
	case statusCode >= 500:
		t = ErrorTypeServerError
	default:
		t = ErrorTypeUnknown
	}
	return &Error{Type: t, Message: message, Code: statusCode}
}
