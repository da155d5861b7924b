package service

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
)

// capsuleKDFInfo domain-separates limb keys from every other use of the shared secret.
const capsuleKDFInfo = "chainsensors/capsule/v1"

// limbWordSize is the 64-bit DEK word sealed in each limb, after the sender share.
const limbWordSize = cryptoDomain.LimbSize - cryptoDomain.SenderShareSize - cryptoDomain.TagSize

// X25519Sealer implements CapsuleSealer.
//
// A capsule is produced by an ephemeral-static x25519 exchange with the recipient. The
// shared secret is expanded with HKDF-SHA256 (salt = capsule nonce, info binds both public
// keys) into a ChaCha20-Poly1305 key. The DEK is split into four little-endian 64-bit
// words; each word is sealed separately with the limb index as associated data and
// prefixed with an 8-byte share of the ephemeral public key, giving four 32-byte limbs.
// Reordering, truncating or altering any limb makes Open fail.
type X25519Sealer struct {
	rand io.Reader
}

// NewCapsuleSealer creates a sealer drawing ephemeral keys and nonces from crypto/rand.
func NewCapsuleSealer() *X25519Sealer {
	return &X25519Sealer{rand: rand.Reader}
}

// Seal seals dek to recipient with a fresh random nonce.
func (s *X25519Sealer) Seal(
	recipient [cryptoDomain.PublicKeySize]byte,
	dek [cryptoDomain.KeySize]byte,
) (*cryptoDomain.SealedCapsule, error) {
	var nonce [cryptoDomain.CapsuleNonceSize]byte
	if _, err := io.ReadFull(s.rand, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate capsule nonce: %w", err)
	}
	return s.SealWithNonce(recipient, dek, nonce)
}

// SealWithNonce seals dek to recipient using nonce. A fresh ephemeral key is generated on
// every call, so the limb key is unique even when a caller repeats a nonce.
func (s *X25519Sealer) SealWithNonce(
	recipient [cryptoDomain.PublicKeySize]byte,
	dek [cryptoDomain.KeySize]byte,
	nonce [cryptoDomain.CapsuleNonceSize]byte,
) (*cryptoDomain.SealedCapsule, error) {
	var ephemeral [cryptoDomain.PublicKeySize]byte
	if _, err := io.ReadFull(s.rand, ephemeral[:]); err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}
	defer cryptoDomain.Zero32(&ephemeral)

	senderPub, err := curve25519.X25519(ephemeral[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive ephemeral public key: %w", err)
	}

	shared, err := curve25519.X25519(ephemeral[:], recipient[:])
	if err != nil {
		return nil, cryptoDomain.ErrInvalidPublicKey
	}
	defer cryptoDomain.Zero(shared)

	var sender [cryptoDomain.PublicKeySize]byte
	copy(sender[:], senderPub)

	capsule := &cryptoDomain.SealedCapsule{Nonce: nonce}
	capsule.SetSenderPublicKey(sender)

	key, err := deriveLimbKey(shared, sender, recipient, nonce)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create limb cipher: %w", err)
	}

	for i := range capsule.Limbs {
		word := dek[i*limbWordSize : (i+1)*limbWordSize]
		aead.Seal(capsule.Limbs[i][:cryptoDomain.SenderShareSize], limbNonce(i), word, limbAAD(i))
	}

	return capsule, nil
}

// Open recovers the DEK sealed in capsule using the recipient's private key.
func (s *X25519Sealer) Open(
	privateKey [cryptoDomain.PublicKeySize]byte,
	capsule *cryptoDomain.SealedCapsule,
) ([cryptoDomain.KeySize]byte, error) {
	var dek [cryptoDomain.KeySize]byte
	if capsule == nil {
		return dek, cryptoDomain.ErrInvalidCapsule
	}

	recipientPub, err := curve25519.X25519(privateKey[:], curve25519.Basepoint)
	if err != nil {
		return dek, cryptoDomain.ErrUnsealFailed
	}

	sender := capsule.SenderPublicKey()
	shared, err := curve25519.X25519(privateKey[:], sender[:])
	if err != nil {
		return dek, cryptoDomain.ErrUnsealFailed
	}
	defer cryptoDomain.Zero(shared)

	var recipient [cryptoDomain.PublicKeySize]byte
	copy(recipient[:], recipientPub)

	key, err := deriveLimbKey(shared, sender, recipient, capsule.Nonce)
	if err != nil {
		return dek, err
	}
	defer cryptoDomain.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return dek, fmt.Errorf("failed to create limb cipher: %w", err)
	}

	for i := range capsule.Limbs {
		sealed := capsule.Limbs[i][cryptoDomain.SenderShareSize:]
		if _, err := aead.Open(dek[i*limbWordSize:i*limbWordSize], limbNonce(i), sealed, limbAAD(i)); err != nil {
			cryptoDomain.Zero32(&dek)
			return dek, cryptoDomain.ErrUnsealFailed
		}
	}

	return dek, nil
}

func deriveLimbKey(
	shared []byte,
	sender, recipient [cryptoDomain.PublicKeySize]byte,
	nonce [cryptoDomain.CapsuleNonceSize]byte,
) ([]byte, error) {
	info := make([]byte, 0, len(capsuleKDFInfo)+2*cryptoDomain.PublicKeySize)
	info = append(info, capsuleKDFInfo...)
	info = append(info, sender[:]...)
	info = append(info, recipient[:]...)

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nonce[:], info), key); err != nil {
		return nil, fmt.Errorf("failed to derive limb key: %w", err)
	}
	return key, nil
}

func limbNonce(i int) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	nonce[len(nonce)-1] = byte(i)
	return nonce
}

func limbAAD(i int) []byte {
	return []byte{byte(i)}
}
