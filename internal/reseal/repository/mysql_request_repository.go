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

// MySQLRequestRepository persists reseal requests and their computation offsets. UUIDs are
// stored as BINARY(16).
type MySQLRequestRepository struct {
	db *sql.DB
}

// NewMySQLRequestRepository creates a new MySQL request repository.
func NewMySQLRequestRepository(db *sql.DB) *MySQLRequestRepository {
	return &MySQLRequestRepository{db: db}
}

// Create inserts a new request. A second outstanding request for the same listing and buyer
// collides on the unique index over the generated outstanding_key column.
func (m *MySQLRequestRepository) Create(ctx context.Context, req *resealDomain.ResealRequest) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := req.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal request id")
	}
	capsule, err := req.Capsule.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal capsule")
	}

	query := `INSERT INTO reseal_requests (` + requestColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		idBytes,
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
func (m *MySQLRequestRepository) Update(ctx context.Context, req *resealDomain.ResealRequest) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := req.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal request id")
	}

	query := `UPDATE reseal_requests
			  SET computation_offset = ?, call_nonce = ?, status = ?, signature = ?, attempts = ?,
			      last_error = ?, updated_at = ?
			  WHERE id = ?`

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
		idBytes,
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
func (m *MySQLRequestRepository) Get(ctx context.Context, id uuid.UUID) (*resealDomain.ResealRequest, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal request id")
	}

	query := `SELECT ` + requestColumns + ` FROM reseal_requests WHERE id = ?`

	req, err := scanRequest(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, resealDomain.ErrRequestNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get reseal request")
	}
	return req, nil
}

// GetOutstanding returns the outstanding request for a listing and buyer, if any. Inside a
// transaction the row (or the gap where it would be) stays locked until commit.
func (m *MySQLRequestRepository) GetOutstanding(
	ctx context.Context,
	listing, buyer ledgerDomain.PublicKey,
) (*resealDomain.ResealRequest, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + requestColumns + ` FROM reseal_requests
			  WHERE listing_id = ? AND buyer = ? AND status IN (?, ?, ?)
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
func (m *MySQLRequestRepository) GetLatestByRecord(
	ctx context.Context,
	record ledgerDomain.PublicKey,
) (*resealDomain.ResealRequest, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + requestColumns + ` FROM reseal_requests
			  WHERE record_id = ?
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
func (m *MySQLRequestRepository) ListAwaitingResult(ctx context.Context) ([]*resealDomain.ResealRequest, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + requestColumns + ` FROM reseal_requests
			  WHERE status IN (?, ?)
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

// ReserveOffset records an offset before it is submitted; a duplicate yields
// ErrOffsetCollision.
func (m *MySQLRequestRepository) ReserveOffset(
	ctx context.Context,
	offset *resealDomain.ComputationOffset,
) error {
	querier := database.GetTx(ctx, m.db)

	requestID, err := offset.RequestID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal request id")
	}

	query := `INSERT INTO computation_offsets (computation_offset, request_id, status, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		offsetToDB(offset.Offset),
		requestID,
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
func (m *MySQLRequestRepository) UpdateOffsetStatus(
	ctx context.Context,
	offset uint64,
	status resealDomain.OffsetStatus,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE computation_offsets SET status = ?, updated_at = NOW() WHERE computation_offset = ?`

	if _, err := querier.ExecContext(ctx, query, status, offsetToDB(offset)); err != nil {
		return apperrors.Wrap(err, "failed to update computation offset")
	}
	return nil
}
