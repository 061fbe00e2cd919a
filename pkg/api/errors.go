package api

import (
	"errors"
	"net/http"

	"github.com/magdb/mag/internal/mutation"
	"github.com/magdb/mag/internal/schema"
)

// APIError represents an error with an associated HTTP status code.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, kind, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Kind:       kind,
		Message:    message,
	}
}

// Common error constructors

// ErrBadRequest returns a 400 Bad Request error.
func ErrBadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, "bad_request", message)
}

// ErrValidation returns a 400 error tagged as a validation failure.
func ErrValidation(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, "validation", message)
}

// ErrUnauthorized returns a 401 Unauthorized error.
func ErrUnauthorized(message string) *APIError {
	return NewAPIError(http.StatusUnauthorized, "unauthorized", message)
}

// ErrForbidden returns a 403 Forbidden error.
func ErrForbidden(message string) *APIError {
	return NewAPIError(http.StatusForbidden, "forbidden", message)
}

// ErrNotFound returns a 404 Not Found error.
func ErrNotFound(message string) *APIError {
	return NewAPIError(http.StatusNotFound, "not_found", message)
}

// ErrConflict returns a 409 Conflict error.
func ErrConflict(message string) *APIError {
	return NewAPIError(http.StatusConflict, "conflict", message)
}

// ErrPayloadTooLarge returns a 413 Payload Too Large error.
func ErrPayloadTooLarge(message string) *APIError {
	return NewAPIError(http.StatusRequestEntityTooLarge, "payload_too_large", message)
}

// ErrInternalServer returns a 500 Internal Server Error.
func ErrInternalServer(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, "internal", message)
}

// ErrInvalidJSON returns a 400 error for invalid JSON.
func ErrInvalidJSON(detail string) *APIError {
	if detail == "" {
		return ErrBadRequest("invalid JSON in request body")
	}
	return ErrBadRequest("invalid JSON in request body: " + detail)
}

// mapError translates engine failures into APIErrors. Validation-category
// failures surface their message; configuration defects and store failures
// stay opaque 500s so internals never leak across the boundary.
func mapError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var unknownModel *mutation.UnknownModelError
	var conflict *mutation.ConflictError
	var notFound *mutation.NotFoundError
	var mismatch *mutation.MismatchError
	var denied *mutation.AuthorizationError
	switch {
	case errors.As(err, &unknownModel):
		return ErrBadRequest(unknownModel.Error())
	case errors.As(err, &conflict):
		return ErrConflict(conflict.Error())
	case errors.As(err, &notFound):
		return ErrNotFound(notFound.Error())
	case errors.As(err, &mismatch):
		return ErrBadRequest(mismatch.Error())
	case errors.As(err, &denied):
		return ErrForbidden(denied.Error())
	case mutation.IsValidationFailure(err):
		return ErrValidation(err.Error())
	case errors.Is(err, schema.ErrUnknownFieldType), errors.Is(err, schema.ErrUnknownOperator):
		return ErrInternalServer("schema configuration error")
	default:
		return ErrInternalServer("internal error")
	}
}

// MaxRequestBodySize is the maximum allowed request body size (64MB).
const MaxRequestBodySize = 64 * 1024 * 1024
