package domain

import (
	"github.com/chainsensors/capsules/internal/errors"
)

var (
	// ErrKeyAlreadyExists indicates an ephemeral key was already generated for the listing
	// and buyer. Keys are never reused across resealings.
	ErrKeyAlreadyExists = errors.Wrap(errors.ErrConflict, "ephemeral key already exists")

	// ErrKeyNotFound indicates no ephemeral key is stored for the listing and buyer. A
	// capsule resealed to a lost key cannot be recovered.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "ephemeral key not found")

	// ErrListingMismatch indicates a resealed output addressed to a different listing.
	ErrListingMismatch = errors.Wrap(errors.ErrInvalidInput, "resealed output belongs to another listing")
)
