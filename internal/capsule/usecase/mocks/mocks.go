// Package mocks provides mock implementations of the capsule use case ports for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	capsuleDomain "github.com/chainsensors/capsules/internal/capsule/domain"
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
)

// MockBlobStore is a mock implementation of BlobStore.
type MockBlobStore struct {
	mock.Mock
}

// Put mocks the Put method of BlobStore.
func (m *MockBlobStore) Put(ctx context.Context, content []byte, epochs int) (*capsuleDomain.Blob, error) {
	args := m.Called(ctx, content, epochs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*capsuleDomain.Blob), args.Error(1)
}

// Get mocks the Get method of BlobStore.
func (m *MockBlobStore) Get(ctx context.Context, id string) ([]byte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockCapsuleUseCase is a mock implementation of CapsuleUseCase.
type MockCapsuleUseCase struct {
	mock.Mock
}

// Upload mocks the Upload method of CapsuleUseCase.
func (m *MockCapsuleUseCase) Upload(ctx context.Context, content []byte) (*capsuleDomain.Blob, error) {
	args := m.Called(ctx, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*capsuleDomain.Blob), args.Error(1)
}

// UploadDEK mocks the UploadDEK method of CapsuleUseCase.
func (m *MockCapsuleUseCase) UploadDEK(ctx context.Context, dek []byte) (*capsuleDomain.Blob, error) {
	args := m.Called(ctx, dek)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*capsuleDomain.Blob), args.Error(1)
}

// Fetch mocks the Fetch method of CapsuleUseCase.
func (m *MockCapsuleUseCase) Fetch(ctx context.Context, id string) ([]byte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// FetchCapsule mocks the FetchCapsule method of CapsuleUseCase.
func (m *MockCapsuleUseCase) FetchCapsule(ctx context.Context, id string) (*cryptoDomain.SealedCapsule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.SealedCapsule), args.Error(1)
}
