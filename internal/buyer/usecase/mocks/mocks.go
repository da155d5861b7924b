// Package mocks provides mock implementations of the buyer use case for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	buyerDomain "github.com/chainsensors/capsules/internal/buyer/domain"
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

// MockUnsealer is a mock implementation of Unsealer.
type MockUnsealer struct {
	mock.Mock
}

// GenerateKey mocks the GenerateKey method of Unsealer.
func (m *MockUnsealer) GenerateKey(
	ctx context.Context,
	listing, buyer ledgerDomain.PublicKey,
) ([cryptoDomain.PublicKeySize]byte, error) {
	args := m.Called(ctx, listing, buyer)
	return args.Get(0).([cryptoDomain.PublicKeySize]byte), args.Error(1)
}

// PublicKey mocks the PublicKey method of Unsealer.
func (m *MockUnsealer) PublicKey(
	ctx context.Context,
	listing, buyer ledgerDomain.PublicKey,
) ([cryptoDomain.PublicKeySize]byte, error) {
	args := m.Called(ctx, listing, buyer)
	return args.Get(0).([cryptoDomain.PublicKeySize]byte), args.Error(1)
}

// Unseal mocks the Unseal method of Unsealer.
func (m *MockUnsealer) Unseal(
	ctx context.Context,
	listing, buyer ledgerDomain.PublicKey,
	out *ledgerDomain.ResealOutput,
) ([cryptoDomain.KeySize]byte, error) {
	args := m.Called(ctx, listing, buyer, out)
	return args.Get(0).([cryptoDomain.KeySize]byte), args.Error(1)
}

// DecryptRecords mocks the DecryptRecords method of Unsealer.
func (m *MockUnsealer) DecryptRecords(
	dek [cryptoDomain.KeySize]byte,
	deviceID string,
	envelopes []*cryptoDomain.Envelope,
) ([][]byte, error) {
	args := m.Called(dek, deviceID, envelopes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]byte), args.Error(1)
}

// Keys mocks the Keys method of Unsealer.
func (m *MockUnsealer) Keys(ctx context.Context, listing ledgerDomain.PublicKey) ([]*buyerDomain.EphemeralKey, error) {
	args := m.Called(ctx, listing)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*buyerDomain.EphemeralKey), args.Error(1)
}

// Forget mocks the Forget method of Unsealer.
func (m *MockUnsealer) Forget(ctx context.Context, listing, buyer ledgerDomain.PublicKey) error {
	args := m.Called(ctx, listing, buyer)
	return args.Error(0)
}
