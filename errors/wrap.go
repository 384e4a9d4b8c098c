package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// If err is already a DirectoryError, it wraps it with the new message while
// preserving the code, category, and identifiers.
// Otherwise, it creates a new Internal error wrapping the original.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var dirErr *Error
	if errors.As(err, &dirErr) {
		wrapped := &Error{
			code:      dirErr.code,
			category:  dirErr.category,
			message:   message,
			cause:     err,
			metadata:  dirErr.Metadata(),
			retryable: dirErr.retryable,
			agentID:   dirErr.agentID,
			requestID: dirErr.requestID,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}

	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// AsDirectoryError attempts to extract a DirectoryError from an error chain.
// Returns nil if no DirectoryError is found.
func AsDirectoryError(err error) DirectoryError {
	var dirErr *Error
	if errors.As(err, &dirErr) {
		return dirErr
	}
	return nil
}

// Is checks if any error in the chain has the given error code.
func Is(err error, code ErrorCode) bool {
	var dirErr *Error
	if errors.As(err, &dirErr) {
		return dirErr.code == code
	}
	return false
}

// CodeOf returns the error code of err, or ErrCodeInternal if err carries
// no directory code.
func CodeOf(err error) ErrorCode {
	var dirErr *Error
	if errors.As(err, &dirErr) {
		return dirErr.code
	}
	return ErrCodeInternal
}
