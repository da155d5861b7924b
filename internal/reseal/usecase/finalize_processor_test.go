package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	capsuleDomain "github.com/chainsensors/capsules/internal/capsule/domain"
	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	ledgerService "github.com/chainsensors/capsules/internal/ledger/service"
	outboxDomain "github.com/chainsensors/capsules/internal/outbox/domain"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
	"github.com/chainsensors/capsules/internal/reseal/usecase/mocks"
)

var testAdmin = filledKey(0x99)

type finalizeFixture struct {
	results *mocks.MockResealedCapsuleRepository
	store   *mocks.MockCapsuleStore
	ledger  *mocks.MockLedger
	p       *FinalizeProcessor
}

func newFinalizeFixture(t *testing.T) *finalizeFixture {
	t.Helper()
	f := &finalizeFixture{
		results: &mocks.MockResealedCapsuleRepository{},
		store:   &mocks.MockCapsuleStore{},
		ledger:  &mocks.MockLedger{},
	}
	p, err := NewFinalizeProcessor(testProgramID(), testAdmin, f.results, f.store, f.ledger, discardLogger())
	require.NoError(t, err)
	f.p = p
	f.ledger.On("Signer").Return(testPayer).Maybe()
	return f
}

func outputEvent(t *testing.T, result *resealDomain.ResealedCapsule) *outboxDomain.OutboxEvent {
	t.Helper()
	event, err := outboxDomain.NewOutboxEvent(resealDomain.EventTypeResealOutput, &resealDomain.ResealOutputPayload{
		ResealedCapsuleID: result.ID,
		Listing:           result.ListingID.String(),
		Record:            result.RecordID.String(),
		Signature:         result.Signature,
	})
	require.NoError(t, err)
	return event
}

func TestFinalizeProcessor_Process(t *testing.T) {
	ctx := context.Background()
	signature := ledgerDomain.Signature{9}

	t.Run("uploads capsule and finalizes purchase", func(t *testing.T) {
		f := newFinalizeFixture(t)
		result := testResult()
		content, err := result.SealedCapsule().MarshalBinary()
		require.NoError(t, err)
		cid := capsuleDomain.ComputeBlobID(content)

		f.results.On("Get", ctx, result.ID).Return(result, nil).Once()
		f.store.On("Upload", ctx, content).Return(&capsuleDomain.Blob{ID: cid, Size: len(content)}, nil).Once()
		f.results.On("SetBuyerCapsuleBlobID", ctx, result.ID, cid.String()).Return(nil).Once()
		f.ledger.On("Submit", ctx, mock.Anything).Return(signature, nil).Once()
		f.results.On("MarkFinalized", ctx, testListing, testRecord, cid.String()).Return(nil).Once()

		require.NoError(t, f.p.Process(ctx, outputEvent(t, result)))

		instructions := f.ledger.Calls[len(f.ledger.Calls)-1].Arguments.Get(1).([]ledgerDomain.Instruction)
		require.Len(t, instructions, 1)
		gotCID, accounts, err := ledgerService.DecodeFinalizePurchase(instructions[0])
		require.NoError(t, err)
		assert.Equal(t, cid.String(), gotCID)
		assert.Equal(t, testPayer, accounts.Authority)
		assert.Equal(t, testListing, accounts.ListingState)
		assert.Equal(t, testRecord, accounts.PurchaseRecord)
		marketplace, err := ledgerService.MarketplaceAddress(testProgramID(), testAdmin)
		require.NoError(t, err)
		assert.Equal(t, marketplace, accounts.Marketplace)

		uploaded, err := cryptoDomain.ParseSealedCapsule(content)
		require.NoError(t, err)
		assert.Equal(t, result.Nonce, uploaded.Nonce)
		assert.Equal(t, result.Limbs, uploaded.Limbs)

		f.results.AssertExpectations(t)
		f.store.AssertExpectations(t)
	})

	t.Run("already finalized", func(t *testing.T) {
		f := newFinalizeFixture(t)
		result := testResult()
		result.Finalized = true
		f.results.On("Get", ctx, result.ID).Return(result, nil).Once()

		require.NoError(t, f.p.Process(ctx, outputEvent(t, result)))
		f.store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
		f.ledger.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("retry reuses recorded identifier", func(t *testing.T) {
		f := newFinalizeFixture(t)
		result := testResult()
		require.NoError(t, result.SetBuyerCapsuleBlobID("blob-1"))
		f.results.On("Get", ctx, result.ID).Return(result, nil).Once()
		f.ledger.On("Submit", ctx, mock.Anything).Return(signature, nil).Once()
		f.results.On("MarkFinalized", ctx, testListing, testRecord, "blob-1").Return(nil).Once()

		require.NoError(t, f.p.Process(ctx, outputEvent(t, result)))
		f.store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	})

	t.Run("identifier set concurrently", func(t *testing.T) {
		f := newFinalizeFixture(t)
		result := testResult()
		current := *result
		other := "blob-other"
		current.BuyerCapsuleBlobID = &other

		f.results.On("Get", ctx, result.ID).Return(result, nil).Once()
		f.store.On("Upload", ctx, mock.Anything).Return(&capsuleDomain.Blob{ID: "blob-1"}, nil).Once()
		f.results.On("SetBuyerCapsuleBlobID", ctx, result.ID, "blob-1").Return(resealDomain.ErrCIDAlreadySet).Once()
		f.results.On("Get", ctx, result.ID).Return(&current, nil).Once()
		f.ledger.On("Submit", ctx, mock.Anything).Return(signature, nil).Once()
		f.results.On("MarkFinalized", ctx, testListing, testRecord, other).Return(nil).Once()

		require.NoError(t, f.p.Process(ctx, outputEvent(t, result)))
		f.results.AssertExpectations(t)
	})

	t.Run("submission failure is retried by the outbox", func(t *testing.T) {
		f := newFinalizeFixture(t)
		result := testResult()
		require.NoError(t, result.SetBuyerCapsuleBlobID("blob-1"))
		f.results.On("Get", ctx, result.ID).Return(result, nil).Twice()
		f.ledger.On("Submit", ctx, mock.Anything).Return(ledgerDomain.Signature{}, ledgerDomain.ErrRPCUnavailable).Once()

		err := f.p.Process(ctx, outputEvent(t, result))

		assert.ErrorIs(t, err, ledgerDomain.ErrRPCUnavailable)
		f.results.AssertNotCalled(t, "MarkFinalized", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown result", func(t *testing.T) {
		f := newFinalizeFixture(t)
		result := testResult()
		f.results.On("Get", ctx, result.ID).Return(nil, resealDomain.ErrResealedCapsuleNotFound).Once()

		err := f.p.Process(ctx, outputEvent(t, result))
		assert.ErrorIs(t, err, resealDomain.ErrResealedCapsuleNotFound)
	})
}
