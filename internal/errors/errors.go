package errors

import (
	"fmt"

	"google.golang.org/grpc/status"
)

// Error is a domain error with a machine-readable code and optional metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	cause    error
}

// New creates a domain error with the given code and developer message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted developer message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether target is a domain error with the same code.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithMetadata returns a copy of the error carrying the given metadata.
// Metadata keys feed the i18n message templates.
func (e *Error) WithMetadata(metadata map[string]string) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Metadata = make(map[string]string, len(metadata))
	for k, v := range metadata {
		clone.Metadata[k] = v
	}
	return &clone
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *Error) WithCause(cause error) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.cause = cause
	return &clone
}

// ToGRPCStatus converts the error to a gRPC status with a localized message.
func (e *Error) ToGRPCStatus(locale, userMessage string) error {
	if e == nil {
		return nil
	}
	if userMessage == "" {
		userMessage = e.Message
	}
	return status.Error(e.Code.GRPCCode(), userMessage)
}
