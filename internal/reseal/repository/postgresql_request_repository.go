package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/chainsensors/capsules/internal/database"
	apperrors "github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
)

// PostgreSQLRequestRepository persists reseal requests and their computation offsets.
type PostgreSQLRequestRepository struct {
	db *sql.DB
}

// NewPostgreSQLRequestRepository creates a new PostgreSQL request repository.
func NewPostgreSQLRequestRepository(db *sql.DB) *PostgreSQLRequestRepository {
	return &PostgreSQLRequestRepository{db: db}
}

// Create inserts a new request. A concurrent outstanding request for the same listing and
// buyer violates the partial unique index and yields ErrCorrelationAmbiguity.
func (p *PostgreSQLRequestRepository) Create(ctx context.Context, req *resealDomain.ResealRequest) error {
	querier := database.GetTx(ctx, p.db)

	capsule, err := req.Capsule.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal capsule")
	}

	query := `INSERT INTO reseal_requests (` + requestColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = querier.ExecContext(
		ctx,
		query,
		req.ID,
		req.ListingID,
		req.RecordID,
		req.Buyer,
		req.Payer,
		req.BuyerX25519[:],
		capsule,
		offsetToDB(req.ComputationOffset),
		req.CallNonce[:],
		req.Status,
		nullableString(req.Signature),
		req.Attempts,
		req.LastError,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return resealDomain.ErrCorrelationAmbiguity
		}
		return apperrors.Wrap(err, "failed to create reseal request")
	}
	return nil
}

// Update persists the mutable submission fields of a request.
func (p *PostgreSQLRequestRepository) Update(ctx context.Context, req *resealDomain.ResealRequest) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE reseal_requests
			  SET computation_offset = $1, call_nonce = $2, status = $3, signature = $4, attempts = $5,
			      last_error = $6, updated_at = $7
			  WHERE id = $8`

	result, err := querier.ExecContext(
		ctx,
		query,
		offsetToDB(req.ComputationOffset),
		req.CallNonce[:],
		req.Status,
		nullableString(req.Signature),
		req.Attempts,
		req.LastError,
		req.UpdatedAt,
		req.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update reseal request")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return resealDomain.ErrRequestNotFound
	}
	return nil
}

// Get retrieves a request by id.
func (p *PostgreSQLRequestRepository) Get(ctx context.Context, id uuid.UUID) (*resealDomain.ResealRequest, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + requestColumns + ` FROM reseal_requests WHERE id = $1`

	req, err := scanRequest(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, resealDomain.ErrRequestNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get reseal request")
	}
	return req, nil
}

// GetOutstanding returns the outstanding request for a listing and buyer, if any.
func (p *PostgreSQLRequestRepository) GetOutstanding(
	ctx context.Context,
	listing, buyer ledgerDomain.PublicKey,
) (*resealDomain.ResealRequest, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + requestColumns + ` FROM reseal_requests
			  WHERE listing_id = $1 AND buyer = $2 AND status IN ($3, $4, $5)
			  ORDER BY created_at DESC
			  LIMIT 1
			  FOR UPDATE`

	req, err := scanRequest(querier.QueryRowContext(
		ctx,
		query,
		listing,
		buyer,
		resealDomain.RequestStatusBuilt,
		resealDomain.RequestStatusSubmitted,
		resealDomain.RequestStatusAcknowledged,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, resealDomain.ErrRequestNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outstanding reseal request")
	}
	return req, nil
}

// GetLatestByRecord returns the most recent request for a purchase record.
func (p *PostgreSQLRequestRepository) GetLatestByRecord(
	ctx context.Context,
	record ledgerDomain.PublicKey,
) (*resealDomain.ResealRequest, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + requestColumns + ` FROM reseal_requests
			  WHERE record_id = $1
			  ORDER BY created_at DESC
			  LIMIT 1`

	req, err := scanRequest(querier.QueryRowContext(ctx, query, record))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, resealDomain.ErrRequestNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get reseal request by record")
	}
	return req, nil
}

// ListAwaitingResult returns requests whose submission may still produce a result.
func (p *PostgreSQLRequestRepository) ListAwaitingResult(ctx context.Context) ([]*resealDomain.ResealRequest, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + requestColumns + ` FROM reseal_requests
			  WHERE status IN ($1, $2)
			  ORDER BY created_at ASC`

	rows, err := querier.QueryContext(
		ctx,
		query,
		resealDomain.RequestStatusSubmitted,
		resealDomain.RequestStatusAcknowledged,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list reseal requests")
	}
	return collectRequests(rows)
}

// ReserveOffset records an offset before it is submitted. Offsets are never reused, so a
// duplicate yields ErrOffsetCollision.
func (p *PostgreSQLRequestRepository) ReserveOffset(
	ctx context.Context,
	offset *resealDomain.ComputationOffset,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO computation_offsets (computation_offset, request_id, status, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err := querier.ExecContext(
		ctx,
		query,
		offsetToDB(offset.Offset),
		offset.RequestID,
		offset.Status,
		offset.CreatedAt,
		offset.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return resealDomain.ErrOffsetCollision
		}
		return apperrors.Wrap(err, "failed to reserve computation offset")
	}
	return nil
}

// UpdateOffsetStatus records the outcome of the attempt that used offset.
func (p *PostgreSQLRequestRepository) UpdateOffsetStatus(
	ctx context.Context,
	offset uint64,
	status resealDomain.OffsetStatus,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE computation_offsets SET status = $1, updated_at = NOW() WHERE computation_offset = $2`

	if _, err := querier.ExecContext(ctx, query, status, offsetToDB(offset)); err != nil {
		return apperrors.Wrap(err, "failed to update computation offset")
	}
	return nil
}
