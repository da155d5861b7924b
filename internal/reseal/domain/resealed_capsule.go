package domain

import (
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

// MaxCIDLength bounds the buyer capsule identifier stored on the purchase record.
const MaxCIDLength = 64

// ResealedCapsule is a delivered ResealOutput: the DEK sealed to the buyer's ephemeral key.
type ResealedCapsule struct {
	ID uuid.UUID
	// RequestID is nil when the event matched no registered request.
	RequestID          *uuid.UUID
	ListingID          ledgerDomain.PublicKey
	RecordID           ledgerDomain.PublicKey
	Signature          string
	Slot               uint64
	EncryptionKey      [cryptoDomain.PublicKeySize]byte
	Nonce              [cryptoDomain.CapsuleNonceSize]byte
	Limbs              [cryptoDomain.LimbCount][cryptoDomain.LimbSize]byte
	BuyerCapsuleBlobID *string
	Finalized          bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewResealedCapsule builds the capsule for an event observed in transaction signature.
func NewResealedCapsule(out *ledgerDomain.ResealOutput, signature string, slot uint64) *ResealedCapsule {
	now := time.Now().UTC()
	return &ResealedCapsule{
		ID:            uuid.Must(uuid.NewV7()),
		ListingID:     out.Listing,
		RecordID:      out.Record,
		Signature:     signature,
		Slot:          slot,
		EncryptionKey: out.EncryptionKey,
		Nonce:         out.Nonce,
		Limbs:         out.Limbs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Output returns the event payload the capsule was built from.
func (c *ResealedCapsule) Output() *ledgerDomain.ResealOutput {
	return &ledgerDomain.ResealOutput{
		Listing:       c.ListingID,
		Record:        c.RecordID,
		EncryptionKey: c.EncryptionKey,
		Nonce:         c.Nonce,
		Limbs:         c.Limbs,
	}
}

// SealedCapsule renders the result in the capsule wire format. The limbs already carry
// the network's encryption key as their sender shares.
func (c *ResealedCapsule) SealedCapsule() *cryptoDomain.SealedCapsule {
	return &cryptoDomain.SealedCapsule{
		Nonce: c.Nonce,
		Limbs: c.Limbs,
	}
}

// Ready reports whether the buyer capsule has been stored.
func (c *ResealedCapsule) Ready() bool {
	return c.BuyerCapsuleBlobID != nil
}

// SetBuyerCapsuleBlobID records the identifier of the uploaded buyer capsule. It can be
// set once.
func (c *ResealedCapsule) SetBuyerCapsuleBlobID(cid string) error {
	if cid == "" || len(cid) > MaxCIDLength {
		return ErrInvalidCID
	}
	if c.BuyerCapsuleBlobID != nil {
		if *c.BuyerCapsuleBlobID == cid {
			return nil
		}
		return ErrCIDAlreadySet
	}
	c.BuyerCapsuleBlobID = &cid
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// ResealOutputPayload is the outbox payload announcing a delivered capsule.
type ResealOutputPayload struct {
	ResealedCapsuleID uuid.UUID `json:"resealed_capsule_id"`
	Listing           string    `json:"listing"`
	Record            string    `json:"record"`
	Signature         string    `json:"signature"`
}

// EventTypeResealOutput is the outbox event type appended on delivery.
const EventTypeResealOutput = "reseal.output"
