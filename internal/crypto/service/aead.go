package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
)

// Cipher is an AEAD with a 256-bit key, a random 12-byte nonce per call and a 16-byte tag
// appended to the ciphertext. It is stateless and safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
	alg  cryptoDomain.Algorithm
}

var _ AEAD = (*Cipher)(nil)

// NewCipher returns the cipher for alg, which must be one of the algorithms an envelope
// may name.
func NewCipher(key []byte, alg cryptoDomain.Algorithm) (*Cipher, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	switch alg {
	case cryptoDomain.AESGCM:
		return NewAESGCM(key)
	case cryptoDomain.ChaCha20:
		return NewChaCha20Poly1305(key)
	}
	return nil, cryptoDomain.ErrUnsupportedAlgorithm
}

// NewAESGCM creates an AES-256-GCM cipher. The key must be exactly 32 bytes.
func NewAESGCM(key []byte) (*Cipher, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{aead: aead, alg: cryptoDomain.AESGCM}, nil
}

// NewChaCha20Poly1305 creates a ChaCha20-Poly1305 cipher. The key must be exactly 32 bytes.
func NewChaCha20Poly1305(key []byte) (*Cipher, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
	}

	return &Cipher{aead: aead, alg: cryptoDomain.ChaCha20}, nil
}

// Algorithm returns the algorithm implemented by the cipher.
func (c *Cipher) Algorithm() cryptoDomain.Algorithm {
	return c.alg
}

// Encrypt seals plaintext under a fresh nonce drawn from crypto/rand.
//
// Nonces are never derived from a counter: a key may be used across restarts without
// persisting any sequence state, and reusing a nonce with the same key would break
// confidentiality for both messages.
func (c *Cipher) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = c.aead.Seal(nil, nonce, plaintext, aad)
	return ciphertext, nonce, nil
}

// Decrypt verifies the tag and returns the plaintext. No plaintext is returned on failure.
func (c *Cipher) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	if len(nonce) != c.aead.NonceSize() {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", cryptoDomain.ErrDecryptionFailed)
	}
	return plaintext, nil
}
