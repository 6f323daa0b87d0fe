package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ===========================================================================
// Custom Errors
// Standard application errors, each mapped to an HTTP status code
// ===========================================================================

// Sentinel errors, compare with errors.Is()
var (
	// ErrNotFound resource does not exist
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized missing or invalid credential
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden principal may not access the resource
	ErrForbidden = errors.New("forbidden")

	// ErrValidation malformed input (rating outside 1-5, bad slug, ...)
	ErrValidation = errors.New("validation error")

	// ErrConflict generic data conflict
	ErrConflict = errors.New("conflict")

	// ErrInternal internal server error
	ErrInternal = errors.New("internal server error")

	// ErrTimeout operation timed out
	ErrTimeout = errors.New("timeout")

	// Chat engine errors

	// ErrSessionNotFound unknown chat session id
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidTransition status change not allowed from the current status
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyRated session already carries a rating
	ErrAlreadyRated = errors.New("session already rated")

	// ErrNotResolved rating submitted before the session was resolved or closed
	ErrNotResolved = errors.New("session not resolved")

	// ErrDuplicateSlug department slug already taken
	ErrDuplicateSlug = errors.New("duplicate slug")

	// ErrSlugInUse department slug is referenced by sessions and cannot change
	ErrSlugInUse = errors.New("slug referenced by sessions")

	// ErrBusy session lock could not be acquired in time
	ErrBusy = errors.New("session busy")
)

// ===========================================================================
// AppError
// ===========================================================================

// AppError carries a user facing message on top of a sentinel error
type AppError struct {
	// Err wrapped error
	Err error

	// Message user facing message
	Message string

	// Code machine readable code (e.g. "NOT_FOUND")
	Code string

	// StatusCode HTTP status code
	StatusCode int
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the wrapped error (for errors.Is/As)
func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError from a sentinel error
func New(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: StatusCode(err),
		Code:       ErrorCode(err),
	}
}

// Newf builds an AppError with a formatted message
func Newf(err error, format string, args ...interface{}) *AppError {
	return New(err, fmt.Sprintf(format, args...))
}

// Wrap adds context while keeping the chain intact
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// ===========================================================================
// Error Mapping Functions
// ===========================================================================

// StatusCode returns the HTTP status code for err
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrAlreadyRated),
		errors.Is(err, ErrNotResolved),
		errors.Is(err, ErrDuplicateSlug),
		errors.Is(err, ErrSlugInUse),
		errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the error code string for err
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return "SESSION_NOT_FOUND"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrAlreadyRated):
		return "ALREADY_RATED"
	case errors.Is(err, ErrNotResolved):
		return "NOT_RESOLVED"
	case errors.Is(err, ErrDuplicateSlug):
		return "DUPLICATE_SLUG"
	case errors.Is(err, ErrSlugInUse):
		return "SLUG_IN_USE"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrBusy):
		return "BUSY"
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	default:
		return "INTERNAL_ERROR"
	}
}

// Is helper for errors.Is()
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As helper for errors.As()
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
