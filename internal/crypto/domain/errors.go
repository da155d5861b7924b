package domain

import (
	"github.com/chainsensors/capsules/internal/errors"
)

// Cryptographic error definitions.
//
// Validation failures wrap ErrInvalidInput and are rejected before any I/O.
// Verification failures wrap ErrAuthenticationFailed and must fail closed: no
// partial plaintext or key material is ever returned alongside them.
var (
	// ErrUnsupportedAlgorithm indicates the requested AEAD algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a DEK or derived key is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrInvalidPublicKey indicates an x25519 public key is malformed or a low-order point.
	ErrInvalidPublicKey = errors.Wrap(errors.ErrInvalidInput, "invalid public key")

	// ErrInvalidEnvelope indicates a record envelope is structurally malformed.
	ErrInvalidEnvelope = errors.Wrap(errors.ErrInvalidInput, "invalid envelope")

	// ErrInvalidCapsule indicates a sealed capsule does not have the expected binary layout.
	ErrInvalidCapsule = errors.Wrap(errors.ErrInvalidInput, "invalid capsule")

	// ErrDecryptionFailed indicates a record failed authentication (wrong key, tampered
	// ciphertext or tag, or associated data that does not match the device).
	ErrDecryptionFailed = errors.Wrap(errors.ErrAuthenticationFailed, "decryption failed")

	// ErrUnsealFailed indicates a sealed capsule could not be opened with the given key.
	ErrUnsealFailed = errors.Wrap(errors.ErrAuthenticationFailed, "unseal failed")
)
