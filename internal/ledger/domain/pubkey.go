// Package domain defines the ledger primitives the resealing pipeline speaks: addresses,
// signatures, instructions and the program events it consumes.
package domain

import (
	"crypto/ed25519"
	"database/sql/driver"

	"github.com/mr-tron/base58"
)

// PublicKeySize is the size of a ledger address.
const PublicKeySize = 32

// SignatureSize is the size of a transaction signature.
const SignatureSize = 64

// PublicKey is a ledger address, rendered in base58.
type PublicKey [PublicKeySize]byte

// SystemProgramID is the all-zero address of the system program.
var SystemProgramID = PublicKey{}

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	decoded, err := base58.Decode(s)
	if err != nil || len(decoded) != PublicKeySize {
		return pk, ErrInvalidAddress
	}
	copy(pk[:], decoded)
	return pk, nil
}

// MustParsePublicKey is like ParsePublicKey but panics on error. Intended for constants.
func MustParsePublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PublicKeyFromBytes copies a 32-byte slice into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, ErrInvalidAddress
	}
	copy(pk[:], b)
	return pk, nil
}

func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// IsZero reports whether pk is the all-zero address.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// MarshalText implements encoding.TextMarshaler.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pk *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// Value implements driver.Valuer; addresses are stored in their base58 form.
func (pk PublicKey) Value() (driver.Value, error) {
	return pk.String(), nil
}

// Scan implements sql.Scanner.
func (pk *PublicKey) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return pk.UnmarshalText([]byte(v))
	case []byte:
		return pk.UnmarshalText(v)
	default:
		return ErrInvalidAddress
	}
}

// Signature is a transaction signature, rendered in base58.
type Signature [SignatureSize]byte

// ParseSignature decodes a base58 signature.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	decoded, err := base58.Decode(s)
	if err != nil || len(decoded) != SignatureSize {
		return sig, ErrInvalidSignature
	}
	copy(sig[:], decoded)
	return sig, nil
}

func (s Signature) String() string {
	return base58.Encode(s[:])
}

// IsZero reports whether s is unset.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

// ParsePrivateKey decodes a base58 ed25519 key: either the 64-byte keypair form or a
// 32-byte seed.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	decoded, err := base58.Decode(s)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	switch len(decoded) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(decoded), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(decoded), nil
	default:
		return nil, ErrInvalidPrivateKey
	}
}

// PublicKeyOf returns the address of an ed25519 signing key.
func PublicKeyOf(key ed25519.PrivateKey) PublicKey {
	var pk PublicKey
	copy(pk[:], key.Public().(ed25519.PublicKey))
	return pk
}

// Hash is a recent block hash referenced by a transaction message.
type Hash [32]byte

// ParseHash decodes a base58 block hash.
func ParseHash(s string) (Hash, error) {
	pk, err := ParsePublicKey(s)
	return Hash(pk), err
}

func (h Hash) String() string {
	return base58.Encode(h[:])
}
