package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/chainsensors/capsules/internal/database"
	apperrors "github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
)

// MySQLResealedCapsuleRepository persists delivered reseal results.
type MySQLResealedCapsuleRepository struct {
	db *sql.DB
}

// NewMySQLResealedCapsuleRepository creates a new MySQL resealed capsule repository.
func NewMySQLResealedCapsuleRepository(db *sql.DB) *MySQLResealedCapsuleRepository {
	return &MySQLResealedCapsuleRepository{db: db}
}

func marshalNullableID(id *uuid.UUID) ([]byte, error) {
	if id == nil {
		return nil, nil
	}
	return id.MarshalBinary()
}

// Create inserts a delivered capsule; a repeat for the same (signature, record) yields
// ErrDuplicateDelivery.
func (m *MySQLResealedCapsuleRepository) Create(ctx context.Context, c *resealDomain.ResealedCapsule) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := c.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal resealed capsule id")
	}
	requestID, err := marshalNullableID(c.RequestID)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal request id")
	}

	query := `INSERT INTO resealed_capsules (` + resealedCapsuleColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		idBytes,
		requestID,
		c.ListingID,
		c.RecordID,
		c.Signature,
		offsetToDB(c.Slot),
		c.EncryptionKey[:],
		c.Nonce[:],
		packLimbs(&c.Limbs),
		c.BuyerCapsuleBlobID,
		c.Finalized,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return resealDomain.ErrDuplicateDelivery
		}
		return apperrors.Wrap(err, "failed to create resealed capsule")
	}
	return nil
}

// Get retrieves a resealed capsule by id.
func (m *MySQLResealedCapsuleRepository) Get(
	ctx context.Context,
	id uuid.UUID,
) (*resealDomain.ResealedCapsule, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal resealed capsule id")
	}

	query := `SELECT ` + resealedCapsuleColumns + ` FROM resealed_capsules WHERE id = ?`

	c, err := scanResealedCapsule(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, resealDomain.ErrResealedCapsuleNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get resealed capsule")
	}
	return c, nil
}

// GetLatestByRecord returns the most recently delivered capsule for a purchase record.
func (m *MySQLResealedCapsuleRepository) GetLatestByRecord(
	ctx context.Context,
	record ledgerDomain.PublicKey,
) (*resealDomain.ResealedCapsule, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + resealedCapsuleColumns + ` FROM resealed_capsules
			  WHERE record_id = ?
			  ORDER BY created_at DESC
			  LIMIT 1`

	c, err := scanResealedCapsule(querier.QueryRowContext(ctx, query, record))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, resealDomain.ErrResealedCapsuleNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get resealed capsule by record")
	}
	return c, nil
}

// ListByListing returns the capsules delivered for a listing, newest first.
func (m *MySQLResealedCapsuleRepository) ListByListing(
	ctx context.Context,
	listing ledgerDomain.PublicKey,
	offset, limit int,
) ([]*resealDomain.ResealedCapsule, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + resealedCapsuleColumns + ` FROM resealed_capsules
			  WHERE listing_id = ?
			  ORDER BY created_at DESC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, listing, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list resealed capsules")
	}
	return collectResealedCapsules(rows)
}

// SetBuyerCapsuleBlobID records the buyer capsule identifier at most once.
func (m *MySQLResealedCapsuleRepository) SetBuyerCapsuleBlobID(
	ctx context.Context,
	id uuid.UUID,
	cid string,
) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal resealed capsule id")
	}

	query := `UPDATE resealed_capsules
			  SET buyer_capsule_blob_id = ?, updated_at = ?
			  WHERE id = ? AND (buyer_capsule_blob_id IS NULL OR buyer_capsule_blob_id = ?)`

	result, err := querier.ExecContext(ctx, query, cid, time.Now().UTC(), idBytes, cid)
	if err != nil {
		return apperrors.Wrap(err, "failed to set buyer capsule blob id")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to set buyer capsule blob id")
	}
	if rows == 0 {
		if _, err := m.Get(ctx, id); err != nil {
			return err
		}
		return resealDomain.ErrCIDAlreadySet
	}
	return nil
}

// MarkFinalized flags every capsule of a purchase record as finalized on the ledger.
func (m *MySQLResealedCapsuleRepository) MarkFinalized(
	ctx context.Context,
	listing, record ledgerDomain.PublicKey,
	cid string,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE resealed_capsules
			  SET finalized = TRUE, buyer_capsule_blob_id = COALESCE(buyer_capsule_blob_id, ?), updated_at = ?
			  WHERE listing_id = ? AND record_id = ?`

	result, err := querier.ExecContext(ctx, query, nullableString(cid), time.Now().UTC(), listing, record)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark resealed capsule finalized")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return resealDomain.ErrResealedCapsuleNotFound
	}
	return nil
}
