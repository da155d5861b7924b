// Package usecase implements the buyer side of a purchase: an ephemeral x25519 key per
// listing, opening the resealed DEK and decrypting the listing's records with it.
package usecase

import (
	"context"

	buyerDomain "github.com/chainsensors/capsules/internal/buyer/domain"
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

// KeyRepository persists ephemeral keys.
type KeyRepository interface {
	Create(ctx context.Context, key *buyerDomain.EphemeralKey) error
	Get(ctx context.Context, listing, buyer ledgerDomain.PublicKey) (*buyerDomain.EphemeralKey, error)
	ListByListing(ctx context.Context, listing ledgerDomain.PublicKey) ([]*buyerDomain.EphemeralKey, error)
	Delete(ctx context.Context, listing, buyer ledgerDomain.PublicKey) error
}

// KeyWrapper protects private keys at rest.
type KeyWrapper interface {
	Wrap(ctx context.Context, key [cryptoDomain.KeySize]byte) ([]byte, error)
	Unwrap(ctx context.Context, wrapped []byte) ([cryptoDomain.KeySize]byte, error)
}

// Unsealer defines the buyer operations.
type Unsealer interface {
	// GenerateKey creates the ephemeral key for listing and buyer and returns its public
	// half. It fails with ErrKeyAlreadyExists rather than reuse a key.
	GenerateKey(ctx context.Context, listing, buyer ledgerDomain.PublicKey) ([cryptoDomain.PublicKeySize]byte, error)
	PublicKey(ctx context.Context, listing, buyer ledgerDomain.PublicKey) ([cryptoDomain.PublicKeySize]byte, error)
	// Unseal opens a resealed output with the stored private key.
	Unseal(
		ctx context.Context,
		listing, buyer ledgerDomain.PublicKey,
		out *ledgerDomain.ResealOutput,
	) ([cryptoDomain.KeySize]byte, error)
	// DecryptRecords decrypts envelopes in order and stops at the first failure.
	DecryptRecords(dek [cryptoDomain.KeySize]byte, deviceID string, envelopes []*cryptoDomain.Envelope) ([][]byte, error)
	Keys(ctx context.Context, listing ledgerDomain.PublicKey) ([]*buyerDomain.EphemeralKey, error)
	Forget(ctx context.Context, listing, buyer ledgerDomain.PublicKey) error
}
