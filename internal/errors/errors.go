// FilePath: internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeAuth        ErrorType = "authentication"
	ErrorTypeAuthorize   ErrorType = "authorization"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeRequest     ErrorType = "request"
	ErrorTypeIdentity    ErrorType = "identity_resolution"
	ErrorTypeTransient   ErrorType = "transient_network"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeUnavailable ErrorType = "service_unavailable"
)

// APIError represents a structured API error
type APIError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Details   any       `json:"details,omitempty"`
	err       error     // Internal error for logging
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the internal error to errors.Is / errors.As
func (e *APIError) Unwrap() error {
	return e.err
}

// WithRequestID adds a request ID to the error
func (e *APIError) WithRequestID(id string) *APIError {
	e.RequestID = id
	return e
}

// WithDetails adds additional details to the error
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

func newError(t ErrorType, code int, msg string, err error) *APIError {
	return &APIError{
		Type:    t,
		Message: msg,
		Code:    code,
		err:     err,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string, err error) *APIError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, msg, err)
}

// NewAuthError creates a new authentication error (no valid session or token)
func NewAuthError(msg string, err error) *APIError {
	return newError(ErrorTypeAuth, http.StatusUnauthorized, msg, err)
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(msg string, err error) *APIError {
	return newError(ErrorTypeAuthorize, http.StatusForbidden, msg, err)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(msg string, err error) *APIError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, msg, err)
}

// NewRequestError wraps a non-2xx backend answer. code is the status the
// backend replied with; anything that is not a client error is reported
// as a bad gateway.
func NewRequestError(msg string, code int, err error) *APIError {
	if code < 400 || code >= 500 {
		code = http.StatusBadGateway
	}
	return newError(ErrorTypeRequest, code, msg, err)
}

// NewIdentityResolutionError is returned when no user id can be determined
// for a report export. It is never retried.
func NewIdentityResolutionError(msg string, err error) *APIError {
	return newError(ErrorTypeIdentity, http.StatusUnprocessableEntity, msg, err)
}

// NewTransientNetworkError marks a transport failure talking to the backend.
func NewTransientNetworkError(msg string, err error) *APIError {
	return newError(ErrorTypeTransient, http.StatusBadGateway, msg, err)
}

// NewInternalError creates a new internal server error
func NewInternalError(msg string, err error) *APIError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, msg, err)
}

// NewUnavailableError creates a new service unavailable error
func NewUnavailableError(msg string, err error) *APIError {
	return newError(ErrorTypeUnavailable, http.StatusServiceUnavailable, msg, err)
}

// As returns the first APIError in err's chain.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func isType(err error, t ErrorType) bool {
	if apiErr, ok := As(err); ok {
		return apiErr.Type == t
	}
	return false
}

// IsNotFound checks if an error is a NotFound error
func IsNotFound(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a Validation error
func IsValidation(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsAuth checks if an error is an authentication error
func IsAuth(err error) bool {
	return isType(err, ErrorTypeAuth)
}

// IsTransient checks if an error is a transient network error
func IsTransient(err error) bool {
	return isType(err, ErrorTypeTransient)
}

// IsIdentityResolution checks if an error is an identity resolution error
func IsIdentityResolution(err error) bool {
	return isType(err, ErrorTypeIdentity)
}

// IsRequest checks if an error is a backend request error
func IsRequest(err error) bool {
	return isType(err, ErrorTypeRequest)
}

// Wrap turns any error into an APIError, keeping existing ones untouched.
func Wrap(err error, msg string) *APIError {
	if apiErr, ok := As(err); ok {
		return apiErr
	}
	return NewInternalError(msg, err)
}
