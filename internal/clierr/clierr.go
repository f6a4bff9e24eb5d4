// Package clierr defines structured error types shared by the workflow engine
// and the CLI. Errors carry a machine-readable code, a human-readable message,
// and optional details for JSON consumers.
package clierr

import (
	"errors"
	"fmt"
	"strconv"
)

// Error code constants. Uppercase, underscore-separated, stable across minor versions.
const (
	NotFound          = "NOT_FOUND"
	PermissionDenied  = "PERMISSION_DENIED"
	InvalidTransition = "INVALID_TRANSITION"
	ValidationError   = "VALIDATION_ERROR"
	Conflict          = "CONFLICT"
	InvalidInput      = "INVALID_INPUT"
	WorkspaceNotFound = "WORKSPACE_NOT_FOUND"
	WorkspaceExists   = "WORKSPACE_EXISTS"
	UnknownUser       = "UNKNOWN_USER"
	ConfirmationReq   = "CONFIRMATION_REQUIRED"
	InternalError     = "INTERNAL_ERROR"
)

// Error represents a structured error with a machine-readable code.
type Error struct {
	Code    string
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// New creates an Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetails returns the error with the given details map attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// ExitCode returns 2 for InternalError, 1 for all others.
func (e *Error) ExitCode() int {
	if e.Code == InternalError {
		return 2 //nolint:mnd // exit code 2 for internal errors
	}
	return 1
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// SilentError signals an exit code without additional output.
// Used by batch operations where results are already written to stdout.
type SilentError struct {
	Code int
}

// Error implements the error interface.
func (e *SilentError) Error() string { return "exit " + strconv.Itoa(e.Code) }
