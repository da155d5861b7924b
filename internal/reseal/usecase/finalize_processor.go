package usecase

import (
	"context"
	"log/slog"

	"github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	ledgerService "github.com/chainsensors/capsules/internal/ledger/service"
	outboxDomain "github.com/chainsensors/capsules/internal/outbox/domain"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
)

// FinalizeProcessor handles reseal.output outbox events: it stores the buyer capsule,
// records its identifier on the result and writes it to the purchase record with
// finalize_purchase. Every step is idempotent so the outbox may retry it.
type FinalizeProcessor struct {
	programID   ledgerDomain.PublicKey
	marketplace ledgerDomain.PublicKey
	results     ResealedCapsuleRepository
	store       CapsuleStore
	ledger      Ledger
	logger      *slog.Logger
}

// NewFinalizeProcessor creates a FinalizeProcessor for the marketplace administered by admin.
func NewFinalizeProcessor(
	programID, admin ledgerDomain.PublicKey,
	results ResealedCapsuleRepository,
	store CapsuleStore,
	ledger Ledger,
	logger *slog.Logger,
) (*FinalizeProcessor, error) {
	marketplace, err := ledgerService.MarketplaceAddress(programID, admin)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FinalizeProcessor{
		programID:   programID,
		marketplace: marketplace,
		results:     results,
		store:       store,
		ledger:      ledger,
		logger:      logger,
	}, nil
}

// Process finalizes the purchase behind one delivered result.
func (p *FinalizeProcessor) Process(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	var payload resealDomain.ResealOutputPayload
	if err := event.DecodePayload(&payload); err != nil {
		return err
	}

	result, err := p.results.Get(ctx, payload.ResealedCapsuleID)
	if err != nil {
		return err
	}
	if result.Finalized {
		return nil
	}

	cid, err := p.storeCapsule(ctx, result)
	if err != nil {
		return err
	}

	ix, err := ledgerService.BuildFinalizePurchase(p.programID, &ledgerService.FinalizePurchaseAccounts{
		Authority:      p.ledger.Signer(),
		Marketplace:    p.marketplace,
		ListingState:   result.ListingID,
		PurchaseRecord: result.RecordID,
	}, cid)
	if err != nil {
		return err
	}

	signature, err := p.ledger.Submit(ctx, ix)
	if err != nil {
		// The purchase may have been sealed by an earlier attempt whose ack was lost.
		if current, getErr := p.results.Get(ctx, result.ID); getErr == nil && current.Finalized {
			return nil
		}
		return errors.Wrap(err, "finalize_purchase")
	}

	if err := p.results.MarkFinalized(ctx, result.ListingID, result.RecordID, cid); err != nil {
		return err
	}

	p.logger.Info("purchase finalized",
		slog.String("record", result.RecordID.String()),
		slog.String("cid", cid),
		slog.String("signature", signature.String()),
	)
	return nil
}

// storeCapsule uploads the buyer capsule unless its identifier is already recorded. The
// store is content addressed, so a repeated upload yields the same identifier.
func (p *FinalizeProcessor) storeCapsule(ctx context.Context, result *resealDomain.ResealedCapsule) (string, error) {
	if result.BuyerCapsuleBlobID != nil {
		return *result.BuyerCapsuleBlobID, nil
	}

	content, err := result.SealedCapsule().MarshalBinary()
	if err != nil {
		return "", err
	}
	blob, err := p.store.Upload(ctx, content)
	if err != nil {
		return "", err
	}
	cid := blob.ID.String()

	if err := result.SetBuyerCapsuleBlobID(cid); err != nil {
		return "", err
	}
	err = p.results.SetBuyerCapsuleBlobID(ctx, result.ID, cid)
	if errors.Is(err, resealDomain.ErrCIDAlreadySet) {
		current, getErr := p.results.Get(ctx, result.ID)
		if getErr != nil {
			return "", getErr
		}
		return *current.BuyerCapsuleBlobID, nil
	}
	if err != nil {
		return "", err
	}
	return cid, nil
}
