package util

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Err        error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodePrecondition      = "PRECONDITION_FAILED"
	ErrCodeConnection        = "CONNECTION_ERROR"
	ErrCodeStrategyExecution = "STRATEGY_EXECUTION_ERROR"
	ErrCodeRateLimit         = "RATE_LIMIT_EXCEEDED"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeTokenExpired      = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid      = "TOKEN_INVALID"
)

// NewAppError creates a new application error
func NewAppError(statusCode int, code, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewAppErrorWithDetails creates a new application error with details
func NewAppErrorWithDetails(statusCode int, code, message, details string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Details:    details,
	}
}

// WrapError wraps an existing error
func WrapError(statusCode int, code, message string, err error) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Err:        err,
	}
}

// Common error constructors

func ErrBadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, ErrCodeBadRequest, message)
}

func ErrUnauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func ErrForbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, ErrCodeForbidden, message)
}

func ErrNotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, ErrCodeNotFound, message)
}

func ErrValidation(message string) *AppError {
	return NewAppError(http.StatusBadRequest, ErrCodeValidation, message)
}

func ErrValidationf(format string, args ...interface{}) *AppError {
	return ErrValidation(fmt.Sprintf(format, args...))
}

// ErrPrecondition is returned when an operation is valid but the current state forbids it
func ErrPrecondition(message, details string) *AppError {
	return NewAppErrorWithDetails(http.StatusPreconditionFailed, ErrCodePrecondition, message, details)
}

// ErrConnection is returned when a venue probe fails
func ErrConnection(message string, err error) *AppError {
	return WrapError(http.StatusBadGateway, ErrCodeConnection, message, err)
}

// ErrStrategyExecution wraps a failure raised while submitting a strategy's trades
func ErrStrategyExecution(message string, err error) *AppError {
	return WrapError(http.StatusInternalServerError, ErrCodeStrategyExecution, message, err)
}

func ErrInternalServer(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, ErrCodeInternal, message)
}

func ErrRateLimit(message string) *AppError {
	return NewAppError(http.StatusTooManyRequests, ErrCodeRateLimit, message)
}

// GetAppError extracts AppError from error
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// HasCode reports whether err is an AppError carrying code
func HasCode(err error, code string) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == code
}

func IsValidationError(err error) bool {
	return HasCode(err, ErrCodeValidation)
}

func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}

func IsPreconditionError(err error) bool {
	return HasCode(err, ErrCodePrecondition)
}

func IsConnectionError(err error) bool {
	return HasCode(err, ErrCodeConnection)
}

func IsStrategyExecutionError(err error) bool {
	return HasCode(err, ErrCodeStrategyExecution)
}
