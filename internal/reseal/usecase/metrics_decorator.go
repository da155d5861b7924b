package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	"github.com/chainsensors/capsules/internal/metrics"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
)

// resealUseCaseWithMetrics decorates ResealUseCase with metrics instrumentation.
type resealUseCaseWithMetrics struct {
	next    ResealUseCase
	metrics metrics.BusinessMetrics
}

// NewResealUseCaseWithMetrics wraps a ResealUseCase with metrics recording.
func NewResealUseCaseWithMetrics(useCase ResealUseCase, m metrics.BusinessMetrics) ResealUseCase {
	return &resealUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (r *resealUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	metrics.Observe(ctx, r.metrics, "reseal", operation, start, err)
}

// Submit records metrics for reseal submissions.
func (r *resealUseCaseWithMetrics) Submit(
	ctx context.Context,
	input *SubmitInput,
) (*resealDomain.ResealRequest, error) {
	start := time.Now()
	req, err := r.next.Submit(ctx, input)
	r.record(ctx, "submit", start, err)
	return req, err
}

// GetRequest records metrics for request lookups.
func (r *resealUseCaseWithMetrics) GetRequest(ctx context.Context, id uuid.UUID) (*resealDomain.ResealRequest, error) {
	start := time.Now()
	req, err := r.next.GetRequest(ctx, id)
	r.record(ctx, "get_request", start, err)
	return req, err
}

// GetResealedCapsule records metrics for result lookups.
func (r *resealUseCaseWithMetrics) GetResealedCapsule(
	ctx context.Context,
	record ledgerDomain.PublicKey,
) (*resealDomain.ResealedCapsule, error) {
	start := time.Now()
	result, err := r.next.GetResealedCapsule(ctx, record)
	r.record(ctx, "get_resealed_capsule", start, err)
	return result, err
}

func (r *resealUseCaseWithMetrics) GetStatus(ctx context.Context, record ledgerDomain.PublicKey) (*RecordStatus, error) {
	start := time.Now()
	status, err := r.next.GetStatus(ctx, record)
	r.record(ctx, "get_status", start, err)
	return status, err
}

func (r *resealUseCaseWithMetrics) ListByListing(
	ctx context.Context,
	listing ledgerDomain.PublicKey,
	offset, limit int,
) ([]*resealDomain.ResealedCapsule, error) {
	start := time.Now()
	results, err := r.next.ListByListing(ctx, listing, offset, limit)
	r.record(ctx, "list_by_listing", start, err)
	return results, err
}

// Wait records metrics for bounded waits, including those that time out.
func (r *resealUseCaseWithMetrics) Wait(
	ctx context.Context,
	record ledgerDomain.PublicKey,
) (*resealDomain.ResealedCapsule, error) {
	start := time.Now()
	result, err := r.next.Wait(ctx, record)
	r.record(ctx, "wait", start, err)
	return result, err
}
