package api

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error is a failed controller call, carrying the gRPC status code.
type Error struct {
	Code    codes.Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// GRPCStatus lets status.FromError and status.Code see through Error.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

// FromStatus converts a non-OK status to an *Error. It returns nil for OK.
func FromStatus(s *status.Status) *Error {
	if s == nil || s.Code() == codes.OK {
		return nil
	}
	return &Error{Code: s.Code(), Message: s.Message()}
}

// FromError converts any error returned by the gRPC client to an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Code: codes.Canceled, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: codes.DeadlineExceeded, Message: err.Error()}
	}
	if s, ok := status.FromError(err); ok {
		return &Error{Code: s.Code(), Message: s.Message()}
	}
	return &Error{Code: codes.Unknown, Message: err.Error()}
}

// IsNotFoundError reports whether err is a NotFound failure.
func IsNotFoundError(err error) bool {
	return status.Code(err) == codes.NotFound
}

// Retryable is implemented by errors the caller may retry on request.
type Retryable interface {
	error
	Retry()
}

// RetryError attaches a user triggered retry to an error.
type RetryError struct {
	Err   error
	retry func()
}

// WithRetry wraps err so that the caller can re-issue the failed operation.
func WithRetry(err error, retry func()) error {
	if err == nil {
		return nil
	}
	return &RetryError{Err: err, retry: retry}
}

func (e *RetryError) Error() string { return e.Err.Error() }

func (e *RetryError) Unwrap() error { return e.Err }

// Retry re-issues the failed operation.
func (e *RetryError) Retry() {
	if e.retry != nil {
		e.retry()
	}
}

// CanRetry reports whether err carries a retry capability.
func CanRetry(err error) (Retryable, bool) {
	var r Retryable
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
