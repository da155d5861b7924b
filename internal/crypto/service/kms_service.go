package service

import (
	"context"
	"fmt"

	"gocloud.dev/secrets"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// KMSService opens keepers used to wrap device DEKs and buyer ephemeral keys at rest.
type KMSService interface {
	// OpenKeeper opens a keeper for keyURI (gcpkms://, awskms://, azurekeyvault://,
	// hashivault://, base64key://).
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}

type kmsService struct{}

// NewKMSService creates a new KMS service instance.
func NewKMSService() KMSService {
	return &kmsService{}
}

// OpenKeeper opens a *secrets.Keeper for keyURI.
func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}

// KeyWrapper wraps fixed-size keys with a KMS keeper before they touch disk.
type KeyWrapper struct {
	keeper cryptoDomain.KMSKeeper
}

// NewKeyWrapper creates a KeyWrapper over keeper.
func NewKeyWrapper(keeper cryptoDomain.KMSKeeper) *KeyWrapper {
	return &KeyWrapper{keeper: keeper}
}

// Wrap encrypts key with the keeper.
func (w *KeyWrapper) Wrap(ctx context.Context, key [cryptoDomain.KeySize]byte) ([]byte, error) {
	wrapped, err := w.keeper.Encrypt(ctx, key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to wrap key: %w", err)
	}
	return wrapped, nil
}

// Unwrap decrypts a wrapped key. A wrapped value that does not decrypt to exactly 32 bytes
// is rejected with ErrInvalidKeySize.
func (w *KeyWrapper) Unwrap(ctx context.Context, wrapped []byte) ([cryptoDomain.KeySize]byte, error) {
	plain, err := w.keeper.Decrypt(ctx, wrapped)
	if err != nil {
		return [cryptoDomain.KeySize]byte{}, fmt.Errorf("failed to unwrap key: %w", err)
	}
	defer cryptoDomain.Zero(plain)
	return cryptoDomain.Key32(plain)
}

// Close releases the underlying keeper.
func (w *KeyWrapper) Close() error {
	return w.keeper.Close()
}
