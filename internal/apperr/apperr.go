// Package apperr carries the error taxonomy shared by the task
// pipeline, the annotation platform client, and the HTTP surface.
// Every boundary response pairs a machine-checkable code with a
// human-readable message.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies a failure for callers that branch on category.
type Code string

const (
	CodeNotFound   Code = "not_found"
	CodeValidation Code = "validation"
	CodeUpstream   Code = "upstream"
	CodeAuth       Code = "auth"
	CodeStorage    Code = "storage"
)

// Error is a coded error with optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error formats the code and message for logs.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds a coded error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a coded error around an existing cause.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the code from an error chain. Errors without a code
// are classified as storage failures, the broadest internal category.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeStorage
}

// IsNotFound reports whether the error chain carries CodeNotFound.
func IsNotFound(err error) bool {
	var coded *Error
	return errors.As(err, &coded) && coded.Code == CodeNotFound
}
