// Package service provides the cryptographic primitives of the capsule pipeline: AEAD ciphers
// for telemetry records, the x25519 capsule sealer used to address DEKs to the MPC network and
// to buyers, and KMS-backed key wrapping for locally persisted secrets.
package service

import (
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext (tag appended) and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext (tag appended) using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// CapsuleSealer seals 32-byte DEKs to x25519 recipients and opens them again.
type CapsuleSealer interface {
	// Seal seals dek to recipient with a fresh random nonce.
	Seal(recipient [cryptoDomain.PublicKeySize]byte, dek [cryptoDomain.KeySize]byte) (*cryptoDomain.SealedCapsule, error)

	// SealWithNonce seals dek to recipient using a caller-chosen nonce.
	SealWithNonce(
		recipient [cryptoDomain.PublicKeySize]byte,
		dek [cryptoDomain.KeySize]byte,
		nonce [cryptoDomain.CapsuleNonceSize]byte,
	) (*cryptoDomain.SealedCapsule, error)

	// Open recovers the DEK using the recipient's private key.
	Open(
		privateKey [cryptoDomain.PublicKeySize]byte,
		capsule *cryptoDomain.SealedCapsule,
	) ([cryptoDomain.KeySize]byte, error)
}
