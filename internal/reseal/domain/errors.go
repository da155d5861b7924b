package domain

import (
	"github.com/chainsensors/capsules/internal/errors"
)

// Resealing errors. Validation failures are raised before any I/O.
var (
	// ErrInvalidAccountSize indicates a ciphertext limb that is not exactly 32 bytes or a
	// limb count other than four.
	ErrInvalidAccountSize = errors.Wrap(errors.ErrInvalidInput, "invalid account size")

	// ErrInvalidKeySize indicates a buyer or sender x25519 key that is not 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "x25519 public key must be 32 bytes")

	// ErrInvalidNonceSize indicates a capsule nonce that is not 16 bytes.
	ErrInvalidNonceSize = errors.Wrap(errors.ErrInvalidInput, "capsule nonce must be 16 bytes")

	// ErrPayerMismatch indicates the declared payer is not the key that signs submissions.
	ErrPayerMismatch = errors.Wrap(errors.ErrInvalidInput, "declared payer does not match signer")

	// ErrCorrelationAmbiguity indicates a resealing is already outstanding for the same
	// listing and buyer; its result could not be told apart from a second one.
	ErrCorrelationAmbiguity = errors.Wrap(errors.ErrConflict, "resealing already outstanding for listing and buyer")

	// ErrInvalidTransition indicates a request status change the state machine forbids.
	ErrInvalidTransition = errors.Wrap(errors.ErrConflict, "invalid request status transition")

	// ErrOffsetCollision indicates the network rejected a computation offset already in use.
	ErrOffsetCollision = errors.Wrap(errors.ErrConflict, "computation offset collision")

	// ErrSubmissionTimeout indicates no acknowledgment arrived in time; the attempt's
	// outcome is unknown.
	ErrSubmissionTimeout = errors.Wrap(errors.ErrTimeout, "reseal submission timed out")

	// ErrSubmissionFailed indicates every attempt failed for transient reasons.
	ErrSubmissionFailed = errors.Wrap(errors.ErrUnavailable, "reseal submission failed")

	// ErrRequestNotFound indicates no request matches the identifier or key.
	ErrRequestNotFound = errors.Wrap(errors.ErrNotFound, "reseal request not found")

	// ErrResealedCapsuleNotFound indicates no result has been delivered for the record.
	ErrResealedCapsuleNotFound = errors.Wrap(errors.ErrNotFound, "resealed capsule not found")

	// ErrDuplicateDelivery indicates the result for this transaction and record was
	// already persisted.
	ErrDuplicateDelivery = errors.Wrap(errors.ErrConflict, "resealed capsule already delivered")

	// ErrCIDAlreadySet indicates the buyer capsule identifier was already recorded.
	ErrCIDAlreadySet = errors.Wrap(errors.ErrConflict, "buyer capsule identifier already set")

	// ErrInvalidCID indicates an empty identifier or one longer than 64 characters.
	ErrInvalidCID = errors.Wrap(errors.ErrInvalidInput, "buyer capsule identifier must be 1 to 64 characters")

	// ErrWaitTimeout indicates a bounded wait ended before the result arrived. The
	// subscription and the request are unaffected.
	ErrWaitTimeout = errors.Wrap(errors.ErrTimeout, "timed out waiting for resealed capsule")
)
