// Package errors defines AppError, an error carrying a stable code and a
// message that is safe to show users, plus the mapping from codes to HTTP
// status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode categorises an AppError.
type ErrorCode string

const (
	ErrCodeNotFound        ErrorCode = "not_found"
	ErrCodeConflict        ErrorCode = "conflict"
	ErrCodeValidation      ErrorCode = "validation"
	ErrCodeForeignKey      ErrorCode = "foreign_key"
	ErrCodeUnauthenticated ErrorCode = "unauthenticated"
	ErrCodeUnavailable     ErrorCode = "unavailable" // IdP, Redis or Postgres not usable
	ErrCodeTimeout         ErrorCode = "timeout"
	ErrCodeCanceled        ErrorCode = "canceled"
	ErrCodeInternal        ErrorCode = "internal"
)

var statusByCode = map[ErrorCode]int{
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeConflict:        http.StatusConflict,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeForeignKey:      http.StatusUnprocessableEntity,
	ErrCodeUnauthenticated: http.StatusUnauthorized,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,
	ErrCodeTimeout:         http.StatusGatewayTimeout,
	ErrCodeCanceled:        http.StatusRequestTimeout,
	ErrCodeInternal:        http.StatusInternalServerError,
}

// AppError works with errors.Is and errors.As through Cause. Sentinel
// AppErrors compare by identity.
type AppError struct {
	Code    ErrorCode
	Message string // safe to show to users
	Cause   error
	Field   string // set for validation errors
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// New returns an AppError without a cause.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// ValidationField reports invalid input for one field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Wrap attaches a code and user message to err. Wrap(nil, ...) is nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// CodeOf returns the code of the outermost AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound reports whether err carries ErrCodeNotFound.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsValidation reports whether err carries ErrCodeValidation.
func IsValidation(err error) bool { return CodeOf(err) == ErrCodeValidation }

// HTTPStatus maps err's code to a status; errors without one are 500.
func HTTPStatus(err error) int {
	if status, ok := statusByCode[CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// UserMessage returns the AppError message for err, or fallback when err
// carries none.
func UserMessage(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
