package domain

import (
	"github.com/chainsensors/capsules/internal/errors"
)

var (
	// ErrNotInitialized indicates the device has no DEK yet.
	ErrNotInitialized = errors.Wrap(errors.ErrNotFound, "device not initialized")

	// ErrUnknownGeneration indicates an envelope names a key generation the device never had.
	ErrUnknownGeneration = errors.Wrap(errors.ErrNotFound, "unknown key generation")

	// ErrGenerationConflict indicates another writer advanced the generation first.
	ErrGenerationConflict = errors.Wrap(errors.ErrConflict, "key generation changed concurrently")

	// ErrInvalidDeviceID indicates an empty device identifier.
	ErrInvalidDeviceID = errors.Wrap(errors.ErrInvalidInput, "device id is required")

	// ErrUnsupportedUploadMode indicates an upload mode other than capsule or dek.
	ErrUnsupportedUploadMode = errors.Wrap(errors.ErrInvalidInput, "unsupported upload mode")

	// ErrMXEKeyNotConfigured indicates capsule registration without the MPC network key.
	ErrMXEKeyNotConfigured = errors.Wrap(errors.ErrInvalidInput, "MXE public key not configured")

	// ErrRegistrationRejected indicates the backend refused the capsule.
	ErrRegistrationRejected = errors.Wrap(errors.ErrInvalidInput, "capsule registration rejected")

	// ErrRegistrationFailed indicates the backend could not be reached or failed.
	ErrRegistrationFailed = errors.Wrap(errors.ErrUnavailable, "capsule registration failed")
)
