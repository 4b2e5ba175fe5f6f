// Package errors provides structured error types for pylock.
//
// Every failure that crosses a package boundary carries a machine-readable
// [Code] from the taxonomy below. The CLI maps codes to exit statuses, and
// library callers branch on them with [Is]:
//
//   - PARSE_ERROR: malformed version, specifier, requirement or document
//   - METADATA_UNAVAILABLE: no configured index could answer for a package
//   - RESOLUTION_IMPOSSIBLE: the search exhausted every alternative
//   - CORRUPT_LOCK: the lock artifact violates its structure
//   - ENVIRONMENT_UNREADABLE: the installed state of a target environment cannot be read
//   - BUILD_BACKEND_FAILURE: the external build backend failed
//   - INVALID_PROJECT: the project declaration is invalid
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidProject, "project.dependencies[%d]: %s", i, msg)
//	if errors.Is(err, errors.ErrCodeInvalidProject) {
//	    // Handle declaration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeMetadataUnavailable, origErr, "no index answered for %s", name)
//
// Domain packages may also define their own error types; implementing
// [Coder] makes them visible to [Is] and [GetCode] without wrapping.
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input errors
	ErrCodeParse          Code = "PARSE_ERROR"
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPackage Code = "INVALID_PACKAGE"
	ErrCodeInvalidProject Code = "INVALID_PROJECT"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"

	// Metadata and network errors
	ErrCodeMetadataUnavailable Code = "METADATA_UNAVAILABLE"
	ErrCodePackageNotFound     Code = "PACKAGE_NOT_FOUND"
	ErrCodeNetwork             Code = "NETWORK_ERROR"

	// Resolution errors
	ErrCodeResolutionImpossible Code = "RESOLUTION_IMPOSSIBLE"
	ErrCodeResolutionTooDeep    Code = "RESOLUTION_TOO_DEEP"

	// Persisted state and boundary errors
	ErrCodeCorruptLock           Code = "CORRUPT_LOCK"
	ErrCodeStaleLock             Code = "STALE_LOCK"
	ErrCodeLockNotFound          Code = "LOCK_NOT_FOUND"
	ErrCodeEnvironmentUnreadable Code = "ENVIRONMENT_UNREADABLE"
	ErrCodeBuildBackendFailure   Code = "BUILD_BACKEND_FAILURE"
	ErrCodeInstallFailed         Code = "INSTALL_FAILED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Coder is implemented by domain error types that belong to a category.
type Coder interface {
	ErrorCode() Code
}

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorCode implements Coder.
func (e *Error) ErrorCode() Code {
	return e.Code
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether any error in err's chain carries the given code.
func Is(err error, code Code) bool {
	for err != nil {
		if c, ok := err.(Coder); ok && c.ErrorCode() == code {
			return true
		}
		switch x := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				if Is(inner, code) {
					return true
				}
			}
			return false
		case interface{ Unwrap() error }:
			err = x.Unwrap()
		default:
			return false
		}
	}
	return false
}

// GetCode extracts the outermost error code from an error's chain.
// Returns empty string if no error in the chain carries a code.
func GetCode(err error) Code {
	var c Coder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + UserMessage(e.Cause)
		}
		return e.Message
	}
	return err.Error()
}
