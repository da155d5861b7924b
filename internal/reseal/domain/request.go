// Package domain defines the resealing pipeline entities: submission requests and their
// state machine, the computation offsets they consume and the resealed capsules delivered
// by the event correlator.
package domain

import (
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

// RequestStatus tracks the submission of a resealing, not the computation result.
type RequestStatus string

const (
	RequestStatusBuilt        RequestStatus = "built"
	RequestStatusSubmitted    RequestStatus = "submitted"
	RequestStatusAcknowledged RequestStatus = "acknowledged"
	RequestStatusSubmitFailed RequestStatus = "submit_failed"
	// RequestStatusCompleted is set when the correlator delivers the result.
	RequestStatusCompleted RequestStatus = "completed"
)

// transitions lists the allowed moves. A result can arrive for a submission whose
// acknowledgment was lost, so Submitted and SubmitFailed may also complete.
var transitions = map[RequestStatus][]RequestStatus{
	RequestStatusBuilt:        {RequestStatusSubmitted},
	RequestStatusSubmitted:    {RequestStatusSubmitted, RequestStatusAcknowledged, RequestStatusSubmitFailed, RequestStatusCompleted},
	RequestStatusAcknowledged: {RequestStatusCompleted},
	RequestStatusSubmitFailed: {RequestStatusCompleted},
}

// IsOutstanding reports whether a request in this status still blocks a second resealing
// for the same listing and buyer.
func (s RequestStatus) IsOutstanding() bool {
	switch s {
	case RequestStatusBuilt, RequestStatusSubmitted, RequestStatusAcknowledged:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is allowed.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ResealRequest is one purchase's request to reseal a capsule for a buyer key. CallNonce
// is the nonce the capsule limbs were sealed under; it is passed to reseal_dek unchanged.
type ResealRequest struct {
	ID                uuid.UUID
	ListingID         ledgerDomain.PublicKey
	RecordID          ledgerDomain.PublicKey
	Buyer             ledgerDomain.PublicKey
	Payer             ledgerDomain.PublicKey
	BuyerX25519       [cryptoDomain.PublicKeySize]byte
	Capsule           cryptoDomain.SealedCapsule
	ComputationOffset uint64
	CallNonce         [cryptoDomain.CapsuleNonceSize]byte
	Status            RequestStatus
	Signature         string
	Attempts          int
	LastError         *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Transition moves the request to next, failing with ErrInvalidTransition otherwise.
func (r *ResealRequest) Transition(next RequestStatus) error {
	if !r.Status.CanTransition(next) {
		return ErrInvalidTransition
	}
	r.Status = next
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// OffsetStatus records what is known about a computation offset.
type OffsetStatus string

const (
	// OffsetStatusPending is recorded before the submission is sent.
	OffsetStatusPending OffsetStatus = "pending"
	// OffsetStatusAcknowledged means the computation entered the queue.
	OffsetStatusAcknowledged OffsetStatus = "acknowledged"
	// OffsetStatusUnknown means the attempt timed out or failed in transit and may have landed.
	OffsetStatusUnknown OffsetStatus = "unknown"
	// OffsetStatusRejected means the network refused the offset as a duplicate.
	OffsetStatusRejected OffsetStatus = "rejected"
)

// ComputationOffset is an offset consumed by a submission attempt. Offsets are never reused,
// whatever their status.
type ComputationOffset struct {
	Offset    uint64
	RequestID uuid.UUID
	Status    OffsetStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
