package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError represents a service-level error with context
type ServiceError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    string `json:"details,omitempty"`
	Cause      error  `json:"-"` // Original error, not exposed in JSON
}

func (e ServiceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// GetServiceError extracts a ServiceError from an error chain
func GetServiceError(err error) (ServiceError, bool) {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return ServiceError{}, false
}

// HasErrorCode reports whether err carries the given service error code.
func HasErrorCode(err error, code string) bool {
	serviceErr, ok := GetServiceError(err)
	return ok && serviceErr.Code == code
}

// Error code constants
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeNotAuthorized     = "NOT_AUTHORIZED"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeAlreadyClaimed    = "ALREADY_CLAIMED"
	ErrCodeAlreadyResolved   = "ALREADY_RESOLVED"
	ErrCodeAmbulanceBusy     = "AMBULANCE_BUSY"
	ErrCodeStaleState        = "STALE_STATE"
	ErrCodeStoreUnavailable  = "STORE_UNAVAILABLE"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// StaleStateError is returned by the store when a conditional update finds
// the record in a state other than the expected one. Actual carries the
// status observed at failure time.
type StaleStateError struct {
	ID       string
	Expected string
	Actual   string
}

func (e StaleStateError) Error() string {
	return fmt.Sprintf("stale state for %s: expected %q, found %q", e.ID, e.Expected, e.Actual)
}

// AsStaleState extracts a StaleStateError from an error chain.
func AsStaleState(err error) (StaleStateError, bool) {
	var stale StaleStateError
	if errors.As(err, &stale) {
		return stale, true
	}
	return StaleStateError{}, false
}

// Common service error constructors

func NewValidationError(message string) error {
	return ServiceError{
		Code:       ErrCodeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewNotFoundError(resource string) error {
	return ServiceError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func NewNotAuthorizedError(message string) error {
	return ServiceError{
		Code:       ErrCodeNotAuthorized,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInvalidTransitionError(from, to string) error {
	return ServiceError{
		Code:       ErrCodeInvalidTransition,
		Message:    fmt.Sprintf("illegal transition from %q to %q", from, to),
		StatusCode: http.StatusConflict,
	}
}

// NewAlreadyClaimedError names the ambulance holding the claim so the losing
// caller can be told who won.
func NewAlreadyClaimedError(ambulanceID, ambulanceName string) error {
	details := ambulanceID
	if ambulanceName != "" {
		details = fmt.Sprintf("%s (%s)", ambulanceName, ambulanceID)
	}
	return ServiceError{
		Code:       ErrCodeAlreadyClaimed,
		Message:    "Emergency already claimed by another ambulance",
		Details:    details,
		StatusCode: http.StatusConflict,
	}
}

func NewAlreadyResolvedError(status string) error {
	return ServiceError{
		Code:       ErrCodeAlreadyResolved,
		Message:    fmt.Sprintf("Emergency already %s", status),
		StatusCode: http.StatusConflict,
	}
}

func NewAmbulanceBusyError() error {
	return ServiceError{
		Code:       ErrCodeAmbulanceBusy,
		Message:    "Ambulance is not available for dispatch",
		StatusCode: http.StatusConflict,
	}
}

func NewStoreUnavailableError(operation string, cause error) error {
	return ServiceError{
		Code:       ErrCodeStoreUnavailable,
		Message:    fmt.Sprintf("Store operation failed: %s", operation),
		Cause:      cause,
		StatusCode: http.StatusServiceUnavailable,
	}
}

func NewInternalError(message string) error {
	return ServiceError{
		Code:       ErrCodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}
