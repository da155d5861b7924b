// Package domain defines the buyer's ephemeral key material.
package domain

import (
	"time"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

// EphemeralKey is the x25519 key pair a buyer generates for one purchase. Only the public
// half leaves the machine; the private half is persisted wrapped by the KMS keeper.
type EphemeralKey struct {
	Listing           ledgerDomain.PublicKey
	Buyer             ledgerDomain.PublicKey
	PublicKey         [cryptoDomain.PublicKeySize]byte
	WrappedPrivateKey []byte
	CreatedAt         time.Time
}
