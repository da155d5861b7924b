// Package usecase implements the resealing pipeline: building and submitting reseal
// requests, correlating the asynchronous results observed on the ledger and finalizing
// purchases once the buyer capsule is stored.
package usecase

import (
	"context"

	"github.com/google/uuid"

	capsuleDomain "github.com/chainsensors/capsules/internal/capsule/domain"
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	outboxDomain "github.com/chainsensors/capsules/internal/outbox/domain"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
)

// Ledger signs and submits instructions.
type Ledger interface {
	// Signer is the address that pays for and signs every submission.
	Signer() ledgerDomain.PublicKey
	// Submit returns once the ledger has accepted the transaction. Timeouts and transport
	// failures leave the outcome unknown.
	Submit(ctx context.Context, instructions ...ledgerDomain.Instruction) (ledgerDomain.Signature, error)
}

// LogSource opens log subscriptions filtered to the marketplace program.
type LogSource interface {
	Open(ctx context.Context) (ledgerDomain.LogStream, error)
}

// CapsuleStore is the subset of the capsule store the pipeline needs.
type CapsuleStore interface {
	Upload(ctx context.Context, content []byte) (*capsuleDomain.Blob, error)
	FetchCapsule(ctx context.Context, id string) (*cryptoDomain.SealedCapsule, error)
}

// RequestRepository persists reseal requests and the computation offsets they consume.
type RequestRepository interface {
	Create(ctx context.Context, req *resealDomain.ResealRequest) error
	Update(ctx context.Context, req *resealDomain.ResealRequest) error
	Get(ctx context.Context, id uuid.UUID) (*resealDomain.ResealRequest, error)
	GetOutstanding(ctx context.Context, listing, buyer ledgerDomain.PublicKey) (*resealDomain.ResealRequest, error)
	GetLatestByRecord(ctx context.Context, record ledgerDomain.PublicKey) (*resealDomain.ResealRequest, error)
	ListAwaitingResult(ctx context.Context) ([]*resealDomain.ResealRequest, error)
	ReserveOffset(ctx context.Context, offset *resealDomain.ComputationOffset) error
	UpdateOffsetStatus(ctx context.Context, offset uint64, status resealDomain.OffsetStatus) error
}

// ResealedCapsuleRepository persists delivered results.
type ResealedCapsuleRepository interface {
	Create(ctx context.Context, capsule *resealDomain.ResealedCapsule) error
	Get(ctx context.Context, id uuid.UUID) (*resealDomain.ResealedCapsule, error)
	GetLatestByRecord(ctx context.Context, record ledgerDomain.PublicKey) (*resealDomain.ResealedCapsule, error)
	ListByListing(
		ctx context.Context,
		listing ledgerDomain.PublicKey,
		offset, limit int,
	) ([]*resealDomain.ResealedCapsule, error)
	SetBuyerCapsuleBlobID(ctx context.Context, id uuid.UUID, cid string) error
	MarkFinalized(ctx context.Context, listing, record ledgerDomain.PublicKey, cid string) error
}

// OutboxRepository appends follow-up work in the caller's transaction.
type OutboxRepository interface {
	Create(ctx context.Context, event *outboxDomain.OutboxEvent) error
}

// SubmitInput is a purchase's request to reseal the listing's capsule for a buyer key.
// The capsule is given either inline (CapsuleNonce, Limbs) or by BlobID.
type SubmitInput struct {
	ListingID    ledgerDomain.PublicKey
	RecordID     ledgerDomain.PublicKey
	Buyer        ledgerDomain.PublicKey
	Payer        ledgerDomain.PublicKey
	BuyerX25519  []byte
	CapsuleNonce []byte
	Limbs        [][]byte
	BlobID       string
}

// RecordStatus summarizes the progress of a purchase record's resealing.
type RecordStatus struct {
	Record             ledgerDomain.PublicKey
	Status             resealDomain.RequestStatus
	Ready              bool
	Finalized          bool
	BuyerCapsuleBlobID *string
}

// ResealUseCase submits resealings and answers queries about their results.
type ResealUseCase interface {
	Submit(ctx context.Context, input *SubmitInput) (*resealDomain.ResealRequest, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*resealDomain.ResealRequest, error)
	GetResealedCapsule(ctx context.Context, record ledgerDomain.PublicKey) (*resealDomain.ResealedCapsule, error)
	GetStatus(ctx context.Context, record ledgerDomain.PublicKey) (*RecordStatus, error)
	ListByListing(
		ctx context.Context,
		listing ledgerDomain.PublicKey,
		offset, limit int,
	) ([]*resealDomain.ResealedCapsule, error)
	// Wait blocks until the record's result is delivered or ctx ends.
	Wait(ctx context.Context, record ledgerDomain.PublicKey) (*resealDomain.ResealedCapsule, error)
}

// Correlator matches ResealOutput events to requests and delivers each result once.
type Correlator interface {
	// Expect registers the request awaiting the result for (listing, record). A result
	// that arrived before registration is delivered immediately.
	Expect(ctx context.Context, requestID uuid.UUID, listing, record ledgerDomain.PublicKey)
	Wait(ctx context.Context, listing, record ledgerDomain.PublicKey) (*resealDomain.ResealedCapsule, error)
	// Run consumes the log subscription until ctx ends, resubscribing after disconnects.
	Run(ctx context.Context) error
}
