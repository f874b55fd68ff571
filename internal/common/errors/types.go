// Package errors defines the failure taxonomy shared by the request executor,
// the retry policy and the authentication strategies.
//
// Every failure is an *AppError tagged with an ErrorType. The four request
// outcomes the executor produces are:
//
//   - ErrTypeBadRequest: HTTP 400, never retried
//   - ErrTypeRateLimit: HTTP 429, retried after the server-directed delay
//   - ErrTypeAuth: credential refresh failed, never retried
//   - ErrTypeTransport: network failure, timeout or any other non-2xx status, retried
//
// The remaining types describe configuration and programming problems.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeBadRequest represents a permanently invalid request (HTTP 400)
	ErrTypeBadRequest ErrorType = "bad_request"
	// ErrTypeRateLimit represents a server-imposed cooldown (HTTP 429)
	ErrTypeRateLimit ErrorType = "rate_limit"
	// ErrTypeAuth represents a failed credential refresh
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeTransport represents network, timeout and unclassified HTTP failures
	ErrTypeTransport ErrorType = "transport"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`

	// StatusCode is the HTTP status that produced the error, zero for network failures.
	StatusCode int `json:"status_code,omitempty"`
	// Body is the raw response body for HTTP-derived errors.
	Body []byte `json:"-"`
	// RetryAfter is the server-directed wait for rate limit errors.
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// BadRequestError creates the terminal error for an HTTP 400 response
func BadRequestError(statusCode int, body []byte) *AppError {
	return &AppError{
		Type:       ErrTypeBadRequest,
		Message:    fmt.Sprintf("bad request: %s", truncate(body, 512)),
		StatusCode: statusCode,
		Body:       body,
	}
}

// RateLimitedError creates a retryable error carrying the server-directed wait
func RateLimitedError(retryAfter time.Duration) *AppError {
	return &AppError{
		Type:       ErrTypeRateLimit,
		Message:    fmt.Sprintf("rate limited, retry after %s", retryAfter),
		StatusCode: 429,
		RetryAfter: retryAfter,
	}
}

// AuthenticationFailedError creates the terminal error for a failed reauthentication
func AuthenticationFailedError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
		Cause:   cause,
	}
}

// TransportError creates a retryable error for network and timeout failures
func TransportError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTransport,
		Message: msg,
		Cause:   cause,
	}
}

// HTTPStatusError creates a retryable transport error for an unclassified non-2xx status
func HTTPStatusError(statusCode int, body []byte) *AppError {
	return &AppError{
		Type:       ErrTypeTransport,
		Message:    fmt.Sprintf("unexpected HTTP status %d", statusCode),
		StatusCode: statusCode,
		Body:       body,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}

	return appErr.Type
}

// IsRetryable reports whether the retry policy may attempt the request again.
// Only rate limit and transport failures qualify.
func IsRetryable(err error) bool {
	switch GetType(err) {
	case ErrTypeRateLimit, ErrTypeTransport:
		return true
	default:
		return false
	}
}

// RetryAfter returns the server-directed wait carried by a rate limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var appErr *AppError
	if !stderrors.As(err, &appErr) || appErr.Type != ErrTypeRateLimit {
		return 0, false
	}
	return appErr.RetryAfter, true
}

// StatusCode returns the HTTP status attached to err, or zero.
func StatusCode(err error) int {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return 0
	}
	return appErr.StatusCode
}

func truncate(body []byte, max int) string {
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
