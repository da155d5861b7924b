package service

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
)

// GenerateX25519KeyPair returns a fresh x25519 private key and its public key.
func GenerateX25519KeyPair() (priv, pub [cryptoDomain.PublicKeySize]byte, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return priv, pub, fmt.Errorf("failed to generate private key: %w", err)
	}
	pub, err = X25519PublicKey(priv)
	return priv, pub, err
}

// X25519PublicKey derives the public key of priv.
func X25519PublicKey(priv [cryptoDomain.PublicKeySize]byte) ([cryptoDomain.PublicKeySize]byte, error) {
	var pub [cryptoDomain.PublicKeySize]byte
	out, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return pub, fmt.Errorf("failed to derive public key: %w", err)
	}
	copy(pub[:], out)
	return pub, nil
}

// ValidatePublicKey checks that pub is 32 bytes and not a low-order point. A low-order
// point would make every shared secret all-zero regardless of the peer's private key.
func ValidatePublicKey(pub []byte) ([cryptoDomain.PublicKeySize]byte, error) {
	var key [cryptoDomain.PublicKeySize]byte
	if len(pub) != cryptoDomain.PublicKeySize {
		return key, cryptoDomain.ErrInvalidPublicKey
	}

	scalar := [cryptoDomain.PublicKeySize]byte{9}
	if _, err := curve25519.X25519(scalar[:], pub); err != nil {
		return key, cryptoDomain.ErrInvalidPublicKey
	}

	copy(key[:], pub)
	return key, nil
}
