// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. Use cases wrap these sentinels with context and
// handlers map them to HTTP status codes.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors shared by every module.
var (
	// ErrNotFound indicates the requested resource (blob, request, key) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing state (duplicate key, outstanding request).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is malformed or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the request lacks valid credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller is not allowed to perform the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrAuthenticationFailed indicates an AEAD tag or unseal verification failure.
	// Callers must fail closed and never use partial output.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrUnavailable indicates a transient failure of an external collaborator
	// (blob store, ledger RPC). The operation may be retried with fresh identifiers.
	ErrUnavailable = errors.New("unavailable")

	// ErrTimeout indicates an operation did not complete within its deadline and its
	// outcome is unknown.
	ErrTimeout = errors.New("timeout")
)

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message while preserving the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors, discarding nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
