// Package usecase implements the device DEK lifecycle: creating and rotating DEKs,
// encrypting telemetry records with the current one and registering each DEK's capsule.
package usecase

import (
	"context"
	"time"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	deviceDomain "github.com/chainsensors/capsules/internal/device/domain"
)

// StateRepository persists key generations.
type StateRepository interface {
	Current(ctx context.Context, deviceID string) (*deviceDomain.Generation, error)
	Get(ctx context.Context, deviceID string, number uint32) (*deviceDomain.Generation, error)
	List(ctx context.Context, deviceID string) (*deviceDomain.State, error)
	Advance(ctx context.Context, deviceID string, next *deviceDomain.Generation) error
	SetBlobID(ctx context.Context, deviceID string, number uint32, blobID string, at time.Time) error
}

// KeyWrapper protects DEKs at rest.
type KeyWrapper interface {
	Wrap(ctx context.Context, key [cryptoDomain.KeySize]byte) ([]byte, error)
	Unwrap(ctx context.Context, wrapped []byte) ([cryptoDomain.KeySize]byte, error)
}

// Registrar hands a DEK to the capsule store, either sealed or in the clear.
type Registrar interface {
	RegisterCapsule(ctx context.Context, capsule []byte) (string, error)
	RegisterDEK(ctx context.Context, dek []byte) (string, error)
}

// DeviceUseCase defines the device operations.
type DeviceUseCase interface {
	// Init creates the first DEK. Calling it again returns the existing generation.
	Init(ctx context.Context) (*deviceDomain.Generation, error)
	EncryptRecord(ctx context.Context, record any) (*cryptoDomain.Envelope, error)
	// DecryptRecord decrypts with the generation named by the envelope.
	DecryptRecord(ctx context.Context, env *cryptoDomain.Envelope, out any) error
	// Register stores the current DEK's capsule once and returns its blob id.
	Register(ctx context.Context) (string, error)
	// Rotate makes a new DEK current and registers it. Earlier generations stay readable.
	Rotate(ctx context.Context) (*deviceDomain.Generation, error)
	State(ctx context.Context) (*deviceDomain.State, error)
}
