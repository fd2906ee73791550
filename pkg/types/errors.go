package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeAuthorization  ErrorType = "authorization"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeConflict       ErrorType = "conflict"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeInternal       ErrorType = "internal"
	ErrorTypeHTTP           ErrorType = "http"
)

// Common error codes
const (
	ErrCodeNetwork           = "NETWORK_ERROR"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeHTTPError         = "HTTP_ERROR"
)

// APIError is the error produced for every failed backend call. Status is zero
// when no response was received.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Status  int       `json:"status"`
	Message string    `json:"message"`
	Errors  []string  `json:"errors,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Status == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", e.Code, e.Status, e.Message)
}

// Unwrap returns the underlying cause error
func (e *APIError) Unwrap() error {
	return e.Cause
}

// NewNetworkError creates the error reported when the backend could not be reached
func NewNetworkError(cause error) *APIError {
	return &APIError{
		Type:    ErrorTypeNetwork,
		Code:    ErrCodeNetwork,
		Message: "network",
		Cause:   cause,
	}
}

// NewHTTPError creates an error for a response with status >= 400
func NewHTTPError(status int, message string, errs []string) *APIError {
	if message == "" {
		message = http.StatusText(status)
	}
	errType, code := classifyStatus(status)
	return &APIError{
		Type:    errType,
		Code:    code,
		Status:  status,
		Message: message,
		Errors:  errs,
	}
}

// NewValidationError creates a 400 error carrying user-facing rule messages
func NewValidationError(message string, errs []string) *APIError {
	return NewHTTPError(http.StatusBadRequest, message, errs)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *APIError {
	return NewHTTPError(http.StatusNotFound, message, nil)
}

// classifyStatus maps HTTP status codes to error types
func classifyStatus(status int) (ErrorType, string) {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrorTypeValidation, ErrCodeInvalidInput
	case http.StatusUnauthorized:
		return ErrorTypeAuthentication, ErrCodeUnauthorized
	case http.StatusForbidden:
		return ErrorTypeAuthorization, ErrCodeForbidden
	case http.StatusNotFound:
		return ErrorTypeNotFound, ErrCodeNotFound
	case http.StatusConflict:
		return ErrorTypeConflict, ErrCodeConflict
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimit, ErrCodeRateLimitExceeded
	}
	if status >= 500 {
		return ErrorTypeInternal, ErrCodeInternalError
	}
	return ErrorTypeHTTP, ErrCodeHTTPError
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsNetwork reports whether err means no response was received.
func IsNetwork(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeNetwork
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}
