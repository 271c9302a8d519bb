package errors

import (
	"errors"
	"fmt"
)

// Error codes for programmatic handling.
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeSessionLimit    = "SESSION_LIMIT"
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeTaskNotFound    = "TASK_NOT_FOUND"
	CodeAgentNotFound   = "AGENT_NOT_FOUND"
	CodeToolNotFound    = "TOOL_NOT_FOUND"
	CodeArchiveError    = "ARCHIVE_ERROR"
	CodeServerError     = "SERVER_ERROR"
)

// GantryError is a structured error with a code and actionable suggestion.
type GantryError struct {
	Code       string // machine-readable code (e.g. SESSION_LIMIT)
	Message    string // human-readable description
	Suggestion string // actionable fix
	Err        error  // wrapped underlying error
}

// Error implements the error interface.
func (e *GantryError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap supports errors.Is / errors.As.
func (e *GantryError) Unwrap() error {
	return e.Err
}

// New creates a GantryError with the given code and message.
func New(code, message string) *GantryError {
	return &GantryError{Code: code, Message: message}
}

// Newf creates a GantryError with a formatted message.
func Newf(code, format string, args ...interface{}) *GantryError {
	return &GantryError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a GantryError wrapping an existing error.
func Wrap(code, message string, err error) *GantryError {
	return &GantryError{Code: code, Message: message, Err: err}
}

// WithSuggestion returns the error with the suggestion set.
func (e *GantryError) WithSuggestion(suggestion string) *GantryError {
	e.Suggestion = suggestion
	return e
}

// Is checks whether target matches this error's code.
func (e *GantryError) Is(target error) bool {
	var ge *GantryError
	if errors.As(target, &ge) {
		return e.Code == ge.Code
	}
	return false
}

// AsCode extracts the GantryError code from an error, or "" if not a GantryError.
func AsCode(err error) string {
	var ge *GantryError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// Suggestion extracts the suggestion from an error, or "" if not a GantryError.
func Suggestion(err error) string {
	var ge *GantryError
	if errors.As(err, &ge) {
		return ge.Suggestion
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code string) bool {
	var ge *GantryError
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}
