// Package mocks provides mock implementations of the device use case for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	deviceDomain "github.com/chainsensors/capsules/internal/device/domain"
)

// MockDeviceUseCase is a mock implementation of DeviceUseCase.
type MockDeviceUseCase struct {
	mock.Mock
}

// Init mocks the Init method of DeviceUseCase.
func (m *MockDeviceUseCase) Init(ctx context.Context) (*deviceDomain.Generation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deviceDomain.Generation), args.Error(1)
}

// EncryptRecord mocks the EncryptRecord method of DeviceUseCase.
func (m *MockDeviceUseCase) EncryptRecord(ctx context.Context, record any) (*cryptoDomain.Envelope, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.Envelope), args.Error(1)
}

// DecryptRecord mocks the DecryptRecord method of DeviceUseCase.
func (m *MockDeviceUseCase) DecryptRecord(ctx context.Context, env *cryptoDomain.Envelope, out any) error {
	args := m.Called(ctx, env, out)
	return args.Error(0)
}

// Register mocks the Register method of DeviceUseCase.
func (m *MockDeviceUseCase) Register(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// Rotate mocks the Rotate method of DeviceUseCase.
func (m *MockDeviceUseCase) Rotate(ctx context.Context) (*deviceDomain.Generation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deviceDomain.Generation), args.Error(1)
}

// State mocks the State method of DeviceUseCase.
func (m *MockDeviceUseCase) State(ctx context.Context) (*deviceDomain.State, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deviceDomain.State), args.Error(1)
}
