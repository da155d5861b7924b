package usecase

import (
	"context"
	"log/slog"

	capsuleDomain "github.com/chainsensors/capsules/internal/capsule/domain"
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	cryptoService "github.com/chainsensors/capsules/internal/crypto/service"
	"github.com/chainsensors/capsules/internal/errors"
)

type capsuleUseCase struct {
	store  BlobStore
	sealer cryptoService.CapsuleSealer
	mxeKey *[cryptoDomain.PublicKeySize]byte
	epochs int
	logger *slog.Logger
}

// Upload stores content as-is. Uploading identical bytes again returns the same identifier.
func (c *capsuleUseCase) Upload(ctx context.Context, content []byte) (*capsuleDomain.Blob, error) {
	if len(content) == 0 {
		return nil, capsuleDomain.ErrEmptyContent
	}

	blob, err := c.store.Put(ctx, content, c.epochs)
	if err != nil {
		return nil, err
	}

	c.logger.Info("capsule stored",
		slog.String("blob_id", blob.ID.String()),
		slog.Int("size", blob.Size),
		slog.Bool("existing", blob.Existing),
	)
	return blob, nil
}

// UploadDEK is the legacy path where the device hands over its plaintext DEK. The key is
// sealed immediately and zeroed; only the capsule leaves this function.
func (c *capsuleUseCase) UploadDEK(ctx context.Context, dek []byte) (*capsuleDomain.Blob, error) {
	defer cryptoDomain.Zero(dek)

	if c.mxeKey == nil {
		return nil, capsuleDomain.ErrMXEKeyNotConfigured
	}

	key, err := cryptoDomain.Key32(dek)
	if err != nil {
		return nil, capsuleDomain.ErrInvalidDEK
	}
	defer cryptoDomain.Zero32(&key)

	capsule, err := c.sealer.Seal(*c.mxeKey, key)
	if err != nil {
		return nil, err
	}

	content, err := capsule.MarshalBinary()
	if err != nil {
		return nil, err
	}

	return c.Upload(ctx, content)
}

// Fetch tries each encoding of id in turn and returns the first hit.
func (c *capsuleUseCase) Fetch(ctx context.Context, id string) ([]byte, error) {
	candidates := capsuleDomain.CandidateIDs(id)
	if len(candidates) == 0 {
		return nil, capsuleDomain.ErrInvalidBlobID
	}

	for _, candidate := range candidates {
		data, err := c.store.Get(ctx, candidate)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, capsuleDomain.ErrBlobNotFound) {
			return nil, err
		}
		c.logger.Debug("blob candidate not found", slog.String("blob_id", candidate))
	}

	return nil, capsuleDomain.ErrBlobNotFound
}

// FetchCapsule fetches id and parses it as a sealed capsule.
func (c *capsuleUseCase) FetchCapsule(ctx context.Context, id string) (*cryptoDomain.SealedCapsule, error) {
	data, err := c.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return cryptoDomain.ParseSealedCapsule(data)
}

// NewCapsuleUseCase creates a CapsuleUseCase. mxeKey may be nil, in which case UploadDEK
// fails with ErrMXEKeyNotConfigured.
func NewCapsuleUseCase(
	store BlobStore,
	sealer cryptoService.CapsuleSealer,
	mxeKey *[cryptoDomain.PublicKeySize]byte,
	epochs int,
	logger *slog.Logger,
) CapsuleUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &capsuleUseCase{
		store:  store,
		sealer: sealer,
		mxeKey: mxeKey,
		epochs: epochs,
		logger: logger,
	}
}
