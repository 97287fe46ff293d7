package apperrors

import (
	"errors"
	"fmt"
)

// Code is a stable error code for programmatic handling. The HTTP layer
// maps codes to response statuses; clients and operators branch on them.
type Code string

const (
	CodeUnknown             Code = "unknown"
	CodeInvalid             Code = "invalid"
	CodeDomainInUse         Code = "domain_in_use"
	CodeAllocationExhausted Code = "allocation_exhausted"
	CodeTemplateNotFound    Code = "template_not_found"
	CodeBookingNotFound     Code = "booking_not_found"
	CodeAuthError           Code = "auth_error"
	CodeOrchestratorError   Code = "orchestrator_error"
	CodeDNSError            Code = "dns_error"
	CodeInvalidTransition   Code = "invalid_transition"
)

// AppError carries a code, a human-readable message and an optional cause.
type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause for errors.Is/As support.
func (e *AppError) Unwrap() error { return e.Err }

// New creates an AppError with code and message.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates an AppError with a formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with code and message.
func Wrap(err error, code Code, message string) *AppError {
	if err == nil {
		return New(code, message)
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// IsCode reports whether err carries the provided code (through unwrapping).
func IsCode(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// CodeOf extracts the code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}
