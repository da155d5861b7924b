package usecase

import (
	"context"
	"sync"

	"github.com/google/uuid"

	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	outboxDomain "github.com/chainsensors/capsules/internal/outbox/domain"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
)

// memStore keeps requests, results and outbox events in memory for the correlator tests.
type memStore struct {
	mu       sync.Mutex
	requests []*resealDomain.ResealRequest
	results  []*resealDomain.ResealedCapsule
	events   []*outboxDomain.OutboxEvent
	offsets  map[uint64]resealDomain.OffsetStatus
}

func newMemStore() *memStore {
	return &memStore{offsets: make(map[uint64]resealDomain.OffsetStatus)}
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memRequests struct{ *memStore }

func (s memRequests) Create(_ context.Context, req *resealDomain.ResealRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *req
	s.requests = append(s.requests, &copied)
	return nil
}

func (s memRequests) Update(_ context.Context, req *resealDomain.ResealRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.requests {
		if existing.ID == req.ID {
			copied := *req
			s.requests[i] = &copied
			return nil
		}
	}
	return resealDomain.ErrRequestNotFound
}

func (s memRequests) Get(_ context.Context, id uuid.UUID) (*resealDomain.ResealRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.ID == id {
			copied := *req
			return &copied, nil
		}
	}
	return nil, resealDomain.ErrRequestNotFound
}

func (s memRequests) GetOutstanding(
	_ context.Context,
	listing, buyer ledgerDomain.PublicKey,
) (*resealDomain.ResealRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		req := s.requests[i]
		if req.ListingID == listing && req.Buyer == buyer && req.Status.IsOutstanding() {
			copied := *req
			return &copied, nil
		}
	}
	return nil, resealDomain.ErrRequestNotFound
}

func (s memRequests) GetLatestByRecord(
	_ context.Context,
	record ledgerDomain.PublicKey,
) (*resealDomain.ResealRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].RecordID == record {
			copied := *s.requests[i]
			return &copied, nil
		}
	}
	return nil, resealDomain.ErrRequestNotFound
}

func (s memRequests) ListAwaitingResult(_ context.Context) ([]*resealDomain.ResealRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*resealDomain.ResealRequest
	for _, req := range s.requests {
		if req.Status == resealDomain.RequestStatusSubmitted || req.Status == resealDomain.RequestStatusAcknowledged {
			copied := *req
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s memRequests) ReserveOffset(_ context.Context, offset *resealDomain.ComputationOffset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.offsets[offset.Offset]; ok {
		return resealDomain.ErrOffsetCollision
	}
	s.offsets[offset.Offset] = offset.Status
	return nil
}

func (s memRequests) UpdateOffsetStatus(_ context.Context, offset uint64, status resealDomain.OffsetStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets[offset] = status
	return nil
}

type memResults struct{ *memStore }

func (s memResults) Create(_ context.Context, result *resealDomain.ResealedCapsule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.results {
		if existing.Signature == result.Signature && existing.RecordID == result.RecordID {
			return resealDomain.ErrDuplicateDelivery
		}
	}
	copied := *result
	s.results = append(s.results, &copied)
	return nil
}

func (s memResults) Get(_ context.Context, id uuid.UUID) (*resealDomain.ResealedCapsule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, result := range s.results {
		if result.ID == id {
			copied := *result
			return &copied, nil
		}
	}
	return nil, resealDomain.ErrResealedCapsuleNotFound
}

func (s memResults) GetLatestByRecord(
	_ context.Context,
	record ledgerDomain.PublicKey,
) (*resealDomain.ResealedCapsule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.results) - 1; i >= 0; i-- {
		if s.results[i].RecordID == record {
			copied := *s.results[i]
			return &copied, nil
		}
	}
	return nil, resealDomain.ErrResealedCapsuleNotFound
}

func (s memResults) ListByListing(
	_ context.Context,
	listing ledgerDomain.PublicKey,
	offset, limit int,
) ([]*resealDomain.ResealedCapsule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*resealDomain.ResealedCapsule
	for _, result := range s.results {
		if result.ListingID == listing {
			copied := *result
			out = append(out, &copied)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (s memResults) SetBuyerCapsuleBlobID(_ context.Context, id uuid.UUID, cid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, result := range s.results {
		if result.ID == id {
			return result.SetBuyerCapsuleBlobID(cid)
		}
	}
	return resealDomain.ErrResealedCapsuleNotFound
}

func (s memResults) MarkFinalized(_ context.Context, listing, record ledgerDomain.PublicKey, cid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, result := range s.results {
		if result.ListingID == listing && result.RecordID == record {
			result.Finalized = true
			if result.BuyerCapsuleBlobID == nil {
				result.BuyerCapsuleBlobID = &cid
			}
			found = true
		}
	}
	if !found {
		return resealDomain.ErrResealedCapsuleNotFound
	}
	return nil
}

type memOutbox struct{ *memStore }

func (s memOutbox) Create(_ context.Context, event *outboxDomain.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memStore) resultCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func (s *memStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
