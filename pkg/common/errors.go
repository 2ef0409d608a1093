package common

import (
	"errors"
	"net/http"
)

// Common error types
var (
	ErrNotFound    = errors.New("resource not found")
	ErrBadRequest  = errors.New("bad request")
	ErrConflict    = errors.New("resource conflict")
	ErrUnavailable = errors.New("service unavailable")
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithErrorCode attaches a machine-readable code for clients.
func (e *AppError) WithErrorCode(code string) *AppError {
	e.ErrorCode = code
	return e
}

// NewAppError creates a new AppError
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewNotFoundError(message string, err error) *AppError {
	if err == nil {
		err = ErrNotFound
	}
	return NewAppError(http.StatusNotFound, message, err)
}

func NewBadRequestError(message string, err error) *AppError {
	if err == nil {
		err = ErrBadRequest
	}
	return NewAppError(http.StatusBadRequest, message, err)
}

func NewConflictError(message string, err error) *AppError {
	if err == nil {
		err = ErrConflict
	}
	return NewAppError(http.StatusConflict, message, err)
}

func NewServiceUnavailableError(message string, err error) *AppError {
	if err == nil {
		err = ErrUnavailable
	}
	return NewAppError(http.StatusServiceUnavailable, message, err)
}
