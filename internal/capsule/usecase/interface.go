// Package usecase implements the DEK capsule store: content-addressed upload and fetch of
// sealed capsules on a pluggable blob back-end.
package usecase

import (
	"context"

	capsuleDomain "github.com/chainsensors/capsules/internal/capsule/domain"
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
)

// BlobStore is the content-addressed back-end holding capsules.
type BlobStore interface {
	Put(ctx context.Context, content []byte, epochs int) (*capsuleDomain.Blob, error)
	// Get returns the content under id exactly as given, or ErrBlobNotFound.
	Get(ctx context.Context, id string) ([]byte, error)
}

// CapsuleUseCase defines the capsule store operations.
type CapsuleUseCase interface {
	Upload(ctx context.Context, content []byte) (*capsuleDomain.Blob, error)
	// UploadDEK seals a plaintext DEK to the MXE public key and uploads the capsule.
	// The caller's dek slice is zeroed before returning.
	UploadDEK(ctx context.Context, dek []byte) (*capsuleDomain.Blob, error)
	Fetch(ctx context.Context, id string) ([]byte, error)
	FetchCapsule(ctx context.Context, id string) (*cryptoDomain.SealedCapsule, error)
}
