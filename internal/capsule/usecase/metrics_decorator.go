package usecase

import (
	"context"
	"time"

	capsuleDomain "github.com/chainsensors/capsules/internal/capsule/domain"
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	"github.com/chainsensors/capsules/internal/metrics"
)

// capsuleUseCaseWithMetrics decorates CapsuleUseCase with metrics instrumentation.
type capsuleUseCaseWithMetrics struct {
	next    CapsuleUseCase
	metrics metrics.BusinessMetrics
}

// NewCapsuleUseCaseWithMetrics wraps a CapsuleUseCase with metrics recording.
func NewCapsuleUseCaseWithMetrics(useCase CapsuleUseCase, m metrics.BusinessMetrics) CapsuleUseCase {
	return &capsuleUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (c *capsuleUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	metrics.Observe(ctx, c.metrics, "capsule", operation, start, err)
}

// Upload records metrics for capsule uploads.
func (c *capsuleUseCaseWithMetrics) Upload(ctx context.Context, content []byte) (*capsuleDomain.Blob, error) {
	start := time.Now()
	blob, err := c.next.Upload(ctx, content)
	c.record(ctx, "upload", start, err)
	return blob, err
}

// UploadDEK records metrics for legacy DEK uploads.
func (c *capsuleUseCaseWithMetrics) UploadDEK(ctx context.Context, dek []byte) (*capsuleDomain.Blob, error) {
	start := time.Now()
	blob, err := c.next.UploadDEK(ctx, dek)
	c.record(ctx, "upload_dek", start, err)
	return blob, err
}

// Fetch records metrics for blob fetches.
func (c *capsuleUseCaseWithMetrics) Fetch(ctx context.Context, id string) ([]byte, error) {
	start := time.Now()
	data, err := c.next.Fetch(ctx, id)
	c.record(ctx, "fetch", start, err)
	return data, err
}

// FetchCapsule records metrics for capsule fetches.
func (c *capsuleUseCaseWithMetrics) FetchCapsule(
	ctx context.Context,
	id string,
) (*cryptoDomain.SealedCapsule, error) {
	start := time.Now()
	capsule, err := c.next.FetchCapsule(ctx, id)
	c.record(ctx, "fetch", start, err)
	return capsule, err
}
