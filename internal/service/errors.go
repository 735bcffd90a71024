package service

import (
	"errors"
	"fmt"
)

// Code classifies a service error for the transport layer
type Code string

const (
	CodeBadRequest      Code = "BAD_REQUEST"
	CodeNotFound        Code = "NOT_FOUND"
	CodeForbidden       Code = "FORBIDDEN"
	CodeConflict        Code = "CONFLICT"
	CodeUnknownScanKind Code = "UNKNOWN_SCAN_KIND"
	CodeInternal        Code = "INTERNAL"
)

// Error is a classified failure returned by the services
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// BadRequest reports malformed or incomplete input
func BadRequest(format string, args ...interface{}) *Error {
	return newError(CodeBadRequest, format, args...)
}

// NotFound reports an unknown order or record
func NotFound(format string, args ...interface{}) *Error {
	return newError(CodeNotFound, format, args...)
}

// Forbidden reports a driver acting on an order they are not assigned to
func Forbidden(format string, args ...interface{}) *Error {
	return newError(CodeForbidden, format, args...)
}

// Conflict reports an order in the wrong status for the requested step
func Conflict(format string, args ...interface{}) *Error {
	return newError(CodeConflict, format, args...)
}

// Internal wraps an unexpected failure
func Internal(err error, message string) *Error {
	return &Error{Code: CodeInternal, Message: message, Err: err}
}

// CodeOf returns the classification of err, INTERNAL for unclassified errors
func CodeOf(err error) Code {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return CodeInternal
}
