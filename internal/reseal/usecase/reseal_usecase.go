package usecase

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	cryptoService "github.com/chainsensors/capsules/internal/crypto/service"
	"github.com/chainsensors/capsules/internal/database"
	"github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	ledgerService "github.com/chainsensors/capsules/internal/ledger/service"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
)

// maxOffsetDraws bounds the redraws when a random offset is already recorded locally.
const maxOffsetDraws = 8

// ResealConfig configures request building and submission.
type ResealConfig struct {
	ProgramID     ledgerDomain.PublicKey
	CircuitName   string
	ClusterOffset uint32
	SubmitTimeout time.Duration
	MaxAttempts   int
}

type resealUseCase struct {
	config     ResealConfig
	txManager  database.TxManager
	requests   RequestRepository
	results    ResealedCapsuleRepository
	store      CapsuleStore
	ledger     Ledger
	deriver    *ledgerService.Deriver
	correlator Correlator
	random     io.Reader
	logger     *slog.Logger
}

// NewResealUseCase creates a ResealUseCase.
func NewResealUseCase(
	config ResealConfig,
	txManager database.TxManager,
	requests RequestRepository,
	results ResealedCapsuleRepository,
	store CapsuleStore,
	ledger Ledger,
	deriver *ledgerService.Deriver,
	correlator Correlator,
	logger *slog.Logger,
) ResealUseCase {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.CircuitName == "" {
		config.CircuitName = ledgerService.InstructionResealDek
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &resealUseCase{
		config:     config,
		txManager:  txManager,
		requests:   requests,
		results:    results,
		store:      store,
		ledger:     ledger,
		deriver:    deriver,
		correlator: correlator,
		random:     rand.Reader,
		logger:     logger,
	}
}

// validate checks everything that can be checked without I/O.
func (r *resealUseCase) validate(input *SubmitInput) (*cryptoDomain.SealedCapsule, error) {
	if input.ListingID.IsZero() || input.RecordID.IsZero() || input.Buyer.IsZero() {
		return nil, errors.Wrap(ledgerDomain.ErrInvalidAddress, "listing, record and buyer are required")
	}
	if len(input.BuyerX25519) != cryptoDomain.PublicKeySize {
		return nil, resealDomain.ErrInvalidKeySize
	}
	if _, err := cryptoService.ValidatePublicKey(input.BuyerX25519); err != nil {
		return nil, errors.Wrap(resealDomain.ErrInvalidKeySize, "buyer key is not a usable x25519 point")
	}

	inline := len(input.CapsuleNonce) > 0 || len(input.Limbs) > 0
	if input.BlobID != "" {
		if inline {
			return nil, errors.Wrap(errors.ErrInvalidInput, "capsule must be given inline or by blob id, not both")
		}
		return nil, nil
	}

	if len(input.Limbs) != cryptoDomain.LimbCount {
		return nil, resealDomain.ErrInvalidAccountSize
	}
	for _, limb := range input.Limbs {
		if len(limb) != cryptoDomain.LimbSize {
			return nil, resealDomain.ErrInvalidAccountSize
		}
	}
	if len(input.CapsuleNonce) != cryptoDomain.CapsuleNonceSize {
		return nil, resealDomain.ErrInvalidNonceSize
	}
	return cryptoDomain.NewSealedCapsule(input.CapsuleNonce, input.Limbs)
}

// Submit validates the input, registers the request and submits it, retrying transient
// failures with a fresh offset each time.
func (r *resealUseCase) Submit(ctx context.Context, input *SubmitInput) (*resealDomain.ResealRequest, error) {
	capsule, err := r.validate(input)
	if err != nil {
		return nil, err
	}
	if input.Payer != r.ledger.Signer() {
		return nil, resealDomain.ErrPayerMismatch
	}

	if capsule == nil {
		capsule, err = r.store.FetchCapsule(ctx, input.BlobID)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	req := &resealDomain.ResealRequest{
		ID:        uuid.Must(uuid.NewV7()),
		ListingID: input.ListingID,
		RecordID:  input.RecordID,
		Buyer:     input.Buyer,
		Payer:     input.Payer,
		Capsule:   *capsule,
		CallNonce: capsule.Nonce,
		Status:    resealDomain.RequestStatusBuilt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	copy(req.BuyerX25519[:], input.BuyerX25519)

	err = r.txManager.WithTx(ctx, func(ctx context.Context) error {
		existing, err := r.requests.GetOutstanding(ctx, req.ListingID, req.Buyer)
		if err == nil {
			r.logger.Warn("resealing already outstanding",
				slog.String("listing", req.ListingID.String()),
				slog.String("request_id", existing.ID.String()),
			)
			return resealDomain.ErrCorrelationAmbiguity
		}
		if !errors.Is(err, resealDomain.ErrRequestNotFound) {
			return err
		}
		return r.requests.Create(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	return req, r.submit(ctx, req)
}

// submit runs the attempt loop for a built request.
func (r *resealUseCase) submit(ctx context.Context, req *resealDomain.ResealRequest) error {
	var (
		lastErr    error
		mayHaveRun bool
	)

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			lastErr = errors.Wrap(resealDomain.ErrSubmissionFailed, ctx.Err().Error())
			break
		}

		offset, err := r.reserveOffset(ctx, req.ID)
		if err != nil {
			return err
		}
		req.ComputationOffset = offset
		req.Attempts = attempt
		if err := req.Transition(resealDomain.RequestStatusSubmitted); err != nil {
			return err
		}
		if err := r.requests.Update(ctx, req); err != nil {
			return err
		}

		logger := r.logger.With(
			slog.String("request_id", req.ID.String()),
			slog.String("listing", req.ListingID.String()),
			slog.String("record", req.RecordID.String()),
			slog.Uint64("offset", offset),
			slog.Int("attempt", attempt),
		)

		signature, err := r.send(ctx, req)
		switch {
		case err == nil:
			return r.acknowledge(ctx, req, signature, logger)

		case errors.Is(err, ledgerDomain.ErrAccountInUse):
			logger.Warn("computation offset rejected as duplicate", slog.Any("error", err))
			r.markOffset(ctx, offset, resealDomain.OffsetStatusRejected, logger)
			lastErr = resealDomain.ErrOffsetCollision

		case errors.Is(err, errors.ErrTimeout):
			logger.Warn("reseal submission timed out", slog.Any("error", err))
			r.markOffset(ctx, offset, resealDomain.OffsetStatusUnknown, logger)
			mayHaveRun = true
			lastErr = resealDomain.ErrSubmissionTimeout

		case errors.Is(err, errors.ErrUnavailable):
			logger.Warn("reseal submission failed", slog.Any("error", err))
			r.markOffset(ctx, offset, resealDomain.OffsetStatusUnknown, logger)
			mayHaveRun = true
			lastErr = errors.Wrap(resealDomain.ErrSubmissionFailed, err.Error())

		default:
			logger.Error("reseal submission rejected", slog.Any("error", err))
			r.markOffset(ctx, offset, resealDomain.OffsetStatusRejected, logger)
			return r.fail(ctx, req, errors.Wrap(resealDomain.ErrSubmissionFailed, err.Error()), mayHaveRun)
		}
	}

	return r.fail(ctx, req, lastErr, mayHaveRun)
}

// send builds the reseal_dek instruction for the request's current offset and submits it
// within the configured timeout.
func (r *resealUseCase) send(ctx context.Context, req *resealDomain.ResealRequest) (ledgerDomain.Signature, error) {
	accounts, err := r.deriver.ResealAccounts(
		r.config.ProgramID,
		req.Payer,
		req.ListingID,
		req.RecordID,
		r.config.CircuitName,
		r.config.ClusterOffset,
		req.ComputationOffset,
	)
	if err != nil {
		return ledgerDomain.Signature{}, err
	}

	ix, err := ledgerService.BuildResealDek(r.config.ProgramID, accounts, &ledgerService.ResealDekArgs{
		ComputationOffset: req.ComputationOffset,
		Nonce:             req.CallNonce,
		BuyerX25519:       req.BuyerX25519,
		Limbs:             req.Capsule.Limbs,
	})
	if err != nil {
		return ledgerDomain.Signature{}, err
	}

	submitCtx := ctx
	if r.config.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, r.config.SubmitTimeout)
		defer cancel()
	}

	signature, err := r.ledger.Submit(submitCtx, ix)
	if err != nil && submitCtx.Err() != nil && !errors.Is(err, errors.ErrTimeout) {
		return signature, errors.Wrap(ledgerDomain.ErrRPCTimeout, err.Error())
	}
	return signature, err
}

func (r *resealUseCase) acknowledge(
	ctx context.Context,
	req *resealDomain.ResealRequest,
	signature ledgerDomain.Signature,
	logger *slog.Logger,
) error {
	r.markOffset(ctx, req.ComputationOffset, resealDomain.OffsetStatusAcknowledged, logger)

	req.Signature = signature.String()
	req.LastError = nil
	if err := req.Transition(resealDomain.RequestStatusAcknowledged); err != nil {
		return err
	}
	if err := r.requests.Update(ctx, req); err != nil {
		return err
	}

	r.correlator.Expect(ctx, req.ID, req.ListingID, req.RecordID)
	logger.Info("reseal request acknowledged", slog.String("signature", req.Signature))
	return nil
}

// fail records the terminal submission failure. When an attempt may have landed, the
// request is still registered so a late result completes it.
func (r *resealUseCase) fail(
	ctx context.Context,
	req *resealDomain.ResealRequest,
	cause error,
	mayHaveRun bool,
) error {
	msg := cause.Error()
	req.LastError = &msg
	if err := req.Transition(resealDomain.RequestStatusSubmitFailed); err != nil {
		return err
	}
	if err := r.requests.Update(context.WithoutCancel(ctx), req); err != nil {
		r.logger.Error("failed to record submission failure",
			slog.String("request_id", req.ID.String()),
			slog.Any("error", err),
		)
	}
	if mayHaveRun {
		r.correlator.Expect(context.WithoutCancel(ctx), req.ID, req.ListingID, req.RecordID)
	}
	return cause
}

// reserveOffset draws a non-zero random offset and records it as pending. Offsets already
// recorded, whatever their status, are never reused.
func (r *resealUseCase) reserveOffset(ctx context.Context, requestID uuid.UUID) (uint64, error) {
	var buf [8]byte
	for draw := 0; draw < maxOffsetDraws; draw++ {
		if _, err := io.ReadFull(r.random, buf[:]); err != nil {
			return 0, errors.Wrap(err, "failed to generate computation offset")
		}
		offset := binary.LittleEndian.Uint64(buf[:])
		if offset == 0 {
			continue
		}

		now := time.Now().UTC()
		err := r.requests.ReserveOffset(ctx, &resealDomain.ComputationOffset{
			Offset:    offset,
			RequestID: requestID,
			Status:    resealDomain.OffsetStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if errors.Is(err, resealDomain.ErrOffsetCollision) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return offset, nil
	}
	return 0, resealDomain.ErrOffsetCollision
}

func (r *resealUseCase) markOffset(
	ctx context.Context,
	offset uint64,
	status resealDomain.OffsetStatus,
	logger *slog.Logger,
) {
	if err := r.requests.UpdateOffsetStatus(context.WithoutCancel(ctx), offset, status); err != nil {
		logger.Error("failed to update computation offset", slog.Any("error", err))
	}
}

// GetRequest returns a request by id.
func (r *resealUseCase) GetRequest(ctx context.Context, id uuid.UUID) (*resealDomain.ResealRequest, error) {
	return r.requests.Get(ctx, id)
}

// GetResealedCapsule returns the latest delivered result for a purchase record.
func (r *resealUseCase) GetResealedCapsule(
	ctx context.Context,
	record ledgerDomain.PublicKey,
) (*resealDomain.ResealedCapsule, error) {
	return r.results.GetLatestByRecord(ctx, record)
}

// GetStatus reports the delivered result if there is one, otherwise the state of the
// latest request for the record.
func (r *resealUseCase) GetStatus(ctx context.Context, record ledgerDomain.PublicKey) (*RecordStatus, error) {
	result, err := r.results.GetLatestByRecord(ctx, record)
	if err == nil {
		return &RecordStatus{
			Record:             record,
			Status:             resealDomain.RequestStatusCompleted,
			Ready:              result.Ready(),
			Finalized:          result.Finalized,
			BuyerCapsuleBlobID: result.BuyerCapsuleBlobID,
		}, nil
	}
	if !errors.Is(err, resealDomain.ErrResealedCapsuleNotFound) {
		return nil, err
	}

	req, err := r.requests.GetLatestByRecord(ctx, record)
	if err != nil {
		return nil, err
	}
	return &RecordStatus{Record: record, Status: req.Status}, nil
}

// ListByListing returns the results delivered for a listing.
func (r *resealUseCase) ListByListing(
	ctx context.Context,
	listing ledgerDomain.PublicKey,
	offset, limit int,
) ([]*resealDomain.ResealedCapsule, error) {
	return r.results.ListByListing(ctx, listing, offset, limit)
}

// Wait resolves the record's listing from its request and waits on the correlator.
func (r *resealUseCase) Wait(
	ctx context.Context,
	record ledgerDomain.PublicKey,
) (*resealDomain.ResealedCapsule, error) {
	if result, err := r.results.GetLatestByRecord(ctx, record); err == nil {
		return result, nil
	} else if !errors.Is(err, resealDomain.ErrResealedCapsuleNotFound) {
		return nil, err
	}

	req, err := r.requests.GetLatestByRecord(ctx, record)
	if err != nil {
		return nil, err
	}
	return r.correlator.Wait(ctx, req.ListingID, record)
}
