package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	CodeRowRejected           = "ROW_REJECTED"
	CodeReferenceUnresolvable = "REFERENCE_UNRESOLVABLE"
	CodeBatchCommitFailed     = "BATCH_COMMIT_FAILED"
	CodeFatalInput            = "FATAL_INPUT"
	CodeConfig                = "CONFIG_ERROR"
	CodeStore                 = "STORE_ERROR"
)

// Common application errors
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrValidation            = errors.New("validation failed")
	ErrRowRejected           = errors.New("row rejected")
	ErrReferenceUnresolvable = errors.New("reference unresolvable")
	ErrBatchCommitFailed     = errors.New("batch commit failed")
	ErrFatalInput            = errors.New("fatal input error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// FatalInputError reports input that aborts the run before any store I/O.
func FatalInputError(message string, cause error) *AppError {
	if cause == nil {
		return NewAppError(CodeFatalInput, message, ErrFatalInput)
	}
	return NewAppError(CodeFatalInput, message, fmt.Errorf("%w: %w", ErrFatalInput, cause))
}

// ReferenceUnresolvableError reports a referenced document that could not
// be created; records naming it are skipped.
func ReferenceUnresolvableError(name string, cause error) *AppError {
	return NewAppError(CodeReferenceUnresolvable, fmt.Sprintf("reference %q", name), fmt.Errorf("%w: %w", ErrReferenceUnresolvable, cause))
}

// IsCode reports whether err carries an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
