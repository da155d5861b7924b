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

// PostgreSQLResealedCapsuleRepository persists delivered reseal results.
type PostgreSQLResealedCapsuleRepository struct {
	db *sql.DB
}

// NewPostgreSQLResealedCapsuleRepository creates a new PostgreSQL resealed capsule repository.
func NewPostgreSQLResealedCapsuleRepository(db *sql.DB) *PostgreSQLResealedCapsuleRepository {
	return &PostgreSQLResealedCapsuleRepository{db: db}
}

// Create inserts a delivered capsule. Deliveries are unique per (signature, record); a
// repeat yields ErrDuplicateDelivery.
func (p *PostgreSQLResealedCapsuleRepository) Create(ctx context.Context, c *resealDomain.ResealedCapsule) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO resealed_capsules (` + resealedCapsuleColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := querier.ExecContext(
		ctx,
		query,
		c.ID,
		c.RequestID,
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
func (p *PostgreSQLResealedCapsuleRepository) Get(
	ctx context.Context,
	id uuid.UUID,
) (*resealDomain.ResealedCapsule, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + resealedCapsuleColumns + ` FROM resealed_capsules WHERE id = $1`

	c, err := scanResealedCapsule(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, resealDomain.ErrResealedCapsuleNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get resealed capsule")
	}
	return c, nil
}

// GetLatestByRecord returns the most recently delivered capsule for a purchase record.
func (p *PostgreSQLResealedCapsuleRepository) GetLatestByRecord(
	ctx context.Context,
	record ledgerDomain.PublicKey,
) (*resealDomain.ResealedCapsule, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + resealedCapsuleColumns + ` FROM resealed_capsules
			  WHERE record_id = $1
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
func (p *PostgreSQLResealedCapsuleRepository) ListByListing(
	ctx context.Context,
	listing ledgerDomain.PublicKey,
	offset, limit int,
) ([]*resealDomain.ResealedCapsule, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + resealedCapsuleColumns + ` FROM resealed_capsules
			  WHERE listing_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, listing, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list resealed capsules")
	}
	return collectResealedCapsules(rows)
}

// SetBuyerCapsuleBlobID records the buyer capsule identifier. The column is written at most
// once; a different identifier for a capsule that already has one yields ErrCIDAlreadySet.
func (p *PostgreSQLResealedCapsuleRepository) SetBuyerCapsuleBlobID(
	ctx context.Context,
	id uuid.UUID,
	cid string,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE resealed_capsules
			  SET buyer_capsule_blob_id = $1, updated_at = $2
			  WHERE id = $3 AND (buyer_capsule_blob_id IS NULL OR buyer_capsule_blob_id = $1)`

	result, err := querier.ExecContext(ctx, query, cid, time.Now().UTC(), id)
	if err != nil {
		return apperrors.Wrap(err, "failed to set buyer capsule blob id")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to set buyer capsule blob id")
	}
	if rows == 0 {
		if _, err := p.Get(ctx, id); err != nil {
			return err
		}
		return resealDomain.ErrCIDAlreadySet
	}
	return nil
}

// MarkFinalized flags every capsule of a purchase record as finalized on the ledger and
// fills in the identifier when it was not recorded locally.
func (p *PostgreSQLResealedCapsuleRepository) MarkFinalized(
	ctx context.Context,
	listing, record ledgerDomain.PublicKey,
	cid string,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE resealed_capsules
			  SET finalized = TRUE, buyer_capsule_blob_id = COALESCE(buyer_capsule_blob_id, $1), updated_at = $2
			  WHERE listing_id = $3 AND record_id = $4`

	result, err := querier.ExecContext(ctx, query, nullableString(cid), time.Now().UTC(), listing, record)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark resealed capsule finalized")
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return resealDomain.ErrResealedCapsuleNotFound
	}
	return nil
}
