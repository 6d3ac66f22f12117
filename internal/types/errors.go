package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a namespaced code identifying a class of engine failure.
type ErrorCode string

// Configuration errors: detected before execution starts, fatal to the run.
const (
	CodeUnknownPlugin   ErrorCode = "UNKNOWN_PLUGIN"
	CodeUnknownStrategy ErrorCode = "UNKNOWN_STRATEGY"
	CodeEmptyAssessment ErrorCode = "EMPTY_ASSESSMENT"
	CodeConfigInvalid   ErrorCode = "CONFIG_INVALID"
)

// Invocation errors: routine, isolated per test case.
const (
	CodeTargetInvocation ErrorCode = "TARGET_INVOCATION"
	CodeTargetTimeout    ErrorCode = "TARGET_TIMEOUT"
)

// EngineError is a structured error carrying a code, a message, and an
// optional wrapped cause. errors.Is matches on the code.
type EngineError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Cause }

func (e *EngineError) Is(target error) bool {
	var engineErr *EngineError
	if errors.As(target, &engineErr) {
		return e.Code == engineErr.Code
	}
	return false
}

// NewError creates a non-retryable EngineError.
func NewError(code ErrorCode, message string) *EngineError {
	return &EngineError{Code: code, Message: message}
}

// WrapError wraps cause in an EngineError with the given code.
func WrapError(code ErrorCode, message string, cause error) *EngineError {
	return &EngineError{Code: code, Message: message, Cause: cause}
}

// NewRetryableError creates an EngineError for transient failures.
func NewRetryableError(code ErrorCode, message string, cause error) *EngineError {
	return &EngineError{Code: code, Message: message, Retryable: true, Cause: cause}
}

// CodeOf extracts the engine error code from err, or "" if err is not an
// EngineError.
func CodeOf(err error) ErrorCode {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Code
	}
	return ""
}

// IsConfigError reports whether err is fatal to run setup.
func IsConfigError(err error) bool {
	switch CodeOf(err) {
	case CodeUnknownPlugin, CodeUnknownStrategy, CodeEmptyAssessment, CodeConfigInvalid:
		return true
	}
	return false
}

// IsInvocationError reports whether err came from calling the target.
func IsInvocationError(err error) bool {
	code := CodeOf(err)
	return code == CodeTargetInvocation || code == CodeTargetTimeout
}

// IsTimeout reports whether err is a target timeout.
func IsTimeout(err error) bool {
	return CodeOf(err) == CodeTargetTimeout
}
