package domain

import (
	"github.com/chainsensors/capsules/internal/errors"
)

// Capsule store errors.
var (
	// ErrBlobNotFound indicates no encoding of the identifier is known to the store.
	ErrBlobNotFound = errors.Wrap(errors.ErrNotFound, "blob not found")

	// ErrEmptyContent indicates an upload with no bytes.
	ErrEmptyContent = errors.Wrap(errors.ErrInvalidInput, "capsule content is empty")

	// ErrInvalidDEK indicates a DEK that is not exactly 32 bytes.
	ErrInvalidDEK = errors.Wrap(errors.ErrInvalidInput, "DEK must be 32 bytes")

	// ErrInvalidBlobID indicates an empty or malformed identifier.
	ErrInvalidBlobID = errors.Wrap(errors.ErrInvalidInput, "invalid blob id")

	// ErrBlobTooLarge indicates a stored blob larger than the store is willing to read.
	ErrBlobTooLarge = errors.Wrap(errors.ErrInvalidInput, "blob exceeds maximum size")

	// ErrStoreUnavailable indicates the blob store could not be reached or failed.
	ErrStoreUnavailable = errors.Wrap(errors.ErrUnavailable, "blob store unavailable")

	// ErrMXEKeyNotConfigured indicates the MPC network public key is missing.
	ErrMXEKeyNotConfigured = errors.New("MXE public key not configured")
)
