// Package mocks provides mock implementations for testing HTTP handlers.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
	"github.com/chainsensors/capsules/internal/reseal/usecase"
)

// MockResealUseCase is a mock implementation of ResealUseCase.
type MockResealUseCase struct {
	mock.Mock
}

// Submit mocks the Submit method of ResealUseCase.
func (m *MockResealUseCase) Submit(
	ctx context.Context,
	input *usecase.SubmitInput,
) (*resealDomain.ResealRequest, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resealDomain.ResealRequest), args.Error(1)
}

// GetRequest mocks the GetRequest method of ResealUseCase.
func (m *MockResealUseCase) GetRequest(ctx context.Context, id uuid.UUID) (*resealDomain.ResealRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resealDomain.ResealRequest), args.Error(1)
}

// GetResealedCapsule mocks the GetResealedCapsule method of ResealUseCase.
func (m *MockResealUseCase) GetResealedCapsule(
	ctx context.Context,
	record ledgerDomain.PublicKey,
) (*resealDomain.ResealedCapsule, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resealDomain.ResealedCapsule), args.Error(1)
}

// GetStatus mocks the GetStatus method of ResealUseCase.
func (m *MockResealUseCase) GetStatus(ctx context.Context, record ledgerDomain.PublicKey) (*usecase.RecordStatus, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.RecordStatus), args.Error(1)
}

// ListByListing mocks the ListByListing method of ResealUseCase.
func (m *MockResealUseCase) ListByListing(
	ctx context.Context,
	listing ledgerDomain.PublicKey,
	offset, limit int,
) ([]*resealDomain.ResealedCapsule, error) {
	args := m.Called(ctx, listing, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*resealDomain.ResealedCapsule), args.Error(1)
}

// Wait mocks the Wait method of ResealUseCase.
func (m *MockResealUseCase) Wait(
	ctx context.Context,
	record ledgerDomain.PublicKey,
) (*resealDomain.ResealedCapsule, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resealDomain.ResealedCapsule), args.Error(1)
}
