package service

import (
	"github.com/chainsensors/capsules/internal/errors"
)

// ErrInvalidCID indicates a buyer capsule identifier that is empty or longer than 64 bytes.
var ErrInvalidCID = errors.Wrap(errors.ErrInvalidInput, "capsule identifier must be 1 to 64 characters")
