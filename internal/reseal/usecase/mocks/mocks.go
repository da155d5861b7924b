// Package mocks provides mock implementations of the reseal use case ports for testing.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	capsuleDomain "github.com/chainsensors/capsules/internal/capsule/domain"
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	outboxDomain "github.com/chainsensors/capsules/internal/outbox/domain"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
)

// MockTxManager runs the function inline without a transaction.
type MockTxManager struct {
	mock.Mock
}

// WithTx mocks the WithTx method of TxManager.
func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

// MockLedger is a mock implementation of Ledger.
type MockLedger struct {
	mock.Mock
}

// Signer mocks the Signer method of Ledger.
func (m *MockLedger) Signer() ledgerDomain.PublicKey {
	args := m.Called()
	return args.Get(0).(ledgerDomain.PublicKey)
}

// Submit mocks the Submit method of Ledger.
func (m *MockLedger) Submit(
	ctx context.Context,
	instructions ...ledgerDomain.Instruction,
) (ledgerDomain.Signature, error) {
	args := m.Called(ctx, instructions)
	return args.Get(0).(ledgerDomain.Signature), args.Error(1)
}

// MockCapsuleStore is a mock implementation of CapsuleStore.
type MockCapsuleStore struct {
	mock.Mock
}

// Upload mocks the Upload method of CapsuleStore.
func (m *MockCapsuleStore) Upload(ctx context.Context, content []byte) (*capsuleDomain.Blob, error) {
	args := m.Called(ctx, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*capsuleDomain.Blob), args.Error(1)
}

// FetchCapsule mocks the FetchCapsule method of CapsuleStore.
func (m *MockCapsuleStore) FetchCapsule(ctx context.Context, id string) (*cryptoDomain.SealedCapsule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.SealedCapsule), args.Error(1)
}

// MockRequestRepository is a mock implementation of RequestRepository.
type MockRequestRepository struct {
	mock.Mock
}

// Create mocks the Create method of RequestRepository.
func (m *MockRequestRepository) Create(ctx context.Context, req *resealDomain.ResealRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// Update mocks the Update method of RequestRepository.
func (m *MockRequestRepository) Update(ctx context.Context, req *resealDomain.ResealRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// Get mocks the Get method of RequestRepository.
func (m *MockRequestRepository) Get(ctx context.Context, id uuid.UUID) (*resealDomain.ResealRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resealDomain.ResealRequest), args.Error(1)
}

// GetOutstanding mocks the GetOutstanding method of RequestRepository.
func (m *MockRequestRepository) GetOutstanding(
	ctx context.Context,
	listing, buyer ledgerDomain.PublicKey,
) (*resealDomain.ResealRequest, error) {
	args := m.Called(ctx, listing, buyer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resealDomain.ResealRequest), args.Error(1)
}

// GetLatestByRecord mocks the GetLatestByRecord method of RequestRepository.
func (m *MockRequestRepository) GetLatestByRecord(
	ctx context.Context,
	record ledgerDomain.PublicKey,
) (*resealDomain.ResealRequest, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resealDomain.ResealRequest), args.Error(1)
}

// ListAwaitingResult mocks the ListAwaitingResult method of RequestRepository.
func (m *MockRequestRepository) ListAwaitingResult(ctx context.Context) ([]*resealDomain.ResealRequest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*resealDomain.ResealRequest), args.Error(1)
}

// ReserveOffset mocks the ReserveOffset method of RequestRepository.
func (m *MockRequestRepository) ReserveOffset(ctx context.Context, offset *resealDomain.ComputationOffset) error {
	args := m.Called(ctx, offset)
	return args.Error(0)
}

// UpdateOffsetStatus mocks the UpdateOffsetStatus method of RequestRepository.
func (m *MockRequestRepository) UpdateOffsetStatus(
	ctx context.Context,
	offset uint64,
	status resealDomain.OffsetStatus,
) error {
	args := m.Called(ctx, offset, status)
	return args.Error(0)
}

// MockResealedCapsuleRepository is a mock implementation of ResealedCapsuleRepository.
type MockResealedCapsuleRepository struct {
	mock.Mock
}

// Create mocks the Create method of ResealedCapsuleRepository.
func (m *MockResealedCapsuleRepository) Create(ctx context.Context, capsule *resealDomain.ResealedCapsule) error {
	args := m.Called(ctx, capsule)
	return args.Error(0)
}

// Get mocks the Get method of ResealedCapsuleRepository.
func (m *MockResealedCapsuleRepository) Get(ctx context.Context, id uuid.UUID) (*resealDomain.ResealedCapsule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resealDomain.ResealedCapsule), args.Error(1)
}

// GetLatestByRecord mocks the GetLatestByRecord method of ResealedCapsuleRepository.
func (m *MockResealedCapsuleRepository) GetLatestByRecord(
	ctx context.Context,
	record ledgerDomain.PublicKey,
) (*resealDomain.ResealedCapsule, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resealDomain.ResealedCapsule), args.Error(1)
}

// ListByListing mocks the ListByListing method of ResealedCapsuleRepository.
func (m *MockResealedCapsuleRepository) ListByListing(
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

// SetBuyerCapsuleBlobID mocks the SetBuyerCapsuleBlobID method of ResealedCapsuleRepository.
func (m *MockResealedCapsuleRepository) SetBuyerCapsuleBlobID(ctx context.Context, id uuid.UUID, cid string) error {
	args := m.Called(ctx, id, cid)
	return args.Error(0)
}

// MarkFinalized mocks the MarkFinalized method of ResealedCapsuleRepository.
func (m *MockResealedCapsuleRepository) MarkFinalized(
	ctx context.Context,
	listing, record ledgerDomain.PublicKey,
	cid string,
) error {
	args := m.Called(ctx, listing, record, cid)
	return args.Error(0)
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mock.Mock
}

// Create mocks the Create method of OutboxRepository.
func (m *MockOutboxRepository) Create(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockCorrelator is a mock implementation of Correlator.
type MockCorrelator struct {
	mock.Mock
}

// Expect mocks the Expect method of Correlator.
func (m *MockCorrelator) Expect(ctx context.Context, requestID uuid.UUID, listing, record ledgerDomain.PublicKey) {
	m.Called(ctx, requestID, listing, record)
}

// Wait mocks the Wait method of Correlator.
func (m *MockCorrelator) Wait(
	ctx context.Context,
	listing, record ledgerDomain.PublicKey,
) (*resealDomain.ResealedCapsule, error) {
	args := m.Called(ctx, listing, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resealDomain.ResealedCapsule), args.Error(1)
}

// Run mocks the Run method of Correlator.
func (m *MockCorrelator) Run(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
