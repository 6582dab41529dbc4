package errors

import (
	"fmt"

	"screenlm/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, classifying plain domain
// errors by their sentinel when no code was attached yet
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    classifyCode(err),
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetCode returns the error code, deriving one from the domain sentinels
// for errors that never passed through Wrap
func GetCode(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return classifyCode(err)
}

// Predefined error codes
const (
	CodeConfigInvalid  = "CONFIG_INVALID"
	CodePrecondition   = "PRECONDITION_VIOLATION"
	CodeDegenerateData = "DEGENERATE_DATA"
	CodeTrialFailed    = "PERMUTATION_TRIAL_FAILED"
	CodeInternalError  = "INTERNAL_ERROR"
)

// classifyCode maps the domain sentinels onto codes
func classifyCode(err error) string {
	switch {
	case core.IsTrialError(err):
		return CodeTrialFailed
	case core.IsDegenerateDataError(err):
		return CodeDegenerateData
	case core.IsPreconditionError(err):
		return CodePrecondition
	default:
		return CodeInternalError
	}
}

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
