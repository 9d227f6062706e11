package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. All handlers and services use these constants
// instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidTime  ErrorCode = "validation_invalid_time_of_day"
	ErrCodeValidationInvalidDay   ErrorCode = "validation_invalid_weekday"
	ErrCodeValidationEmptyText    ErrorCode = "validation_empty_diet_text"
	ErrCodeValidationEmptyMessage ErrorCode = "validation_empty_message"

	// Invariants (422) — rejected before persistence, never silently fixed.
	ErrCodeInvariantEmptyDaySet     ErrorCode = "invariant_empty_day_set"
	ErrCodeInvariantPastOccurrence  ErrorCode = "invariant_past_occurrence"
	ErrCodeInvariantDuplicateLive   ErrorCode = "invariant_duplicate_live_instance"
	ErrCodeInvariantInactiveRule    ErrorCode = "invariant_rule_not_active"

	// Not Found (404)
	ErrCodeNotFoundRule       ErrorCode = "not_found_rule"
	ErrCodeNotFoundInstance   ErrorCode = "not_found_instance"
	ErrCodeNotFoundExtraction ErrorCode = "not_found_extraction"

	// Conflict (409)
	ErrCodeConflictConcurrent    ErrorCode = "conflict_concurrent_modification"
	ErrCodeConflictInstanceState ErrorCode = "conflict_instance_state"

	// Transport (502)
	ErrCodeTransportUnavailable ErrorCode = "transport_unavailable"
	ErrCodeTransportTimeout     ErrorCode = "transport_timeout"
	ErrCodeTransportRejected    ErrorCode = "transport_rejected"

	// Internal (500)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "invariant_"):
		return http.StatusUnprocessableEntity // 422
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case strings.HasPrefix(s, "transport_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type. All domain and handler
// errors are expressed as AppError to enable consistent error formatting,
// HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
