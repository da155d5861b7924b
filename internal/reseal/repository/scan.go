// Package repository implements persistence for reseal requests, computation offsets and
// resealed capsules on PostgreSQL and MySQL.
package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/chainsensors/capsules/internal/crypto/domain"
	apperrors "github.com/chainsensors/capsules/internal/errors"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const requestColumns = `id, listing_id, record_id, buyer, payer, buyer_x25519, capsule, computation_offset,
	call_nonce, status, signature, attempts, last_error, created_at, updated_at`

const resealedCapsuleColumns = `id, request_id, listing_id, record_id, signature, slot, encryption_key, nonce,
	limbs, buyer_capsule_blob_id, finalized, created_at, updated_at`

// Offsets are unsigned 64-bit values stored bit for bit in signed BIGINT columns.
func offsetToDB(offset uint64) int64 {
	return int64(offset) //nolint:gosec
}

func offsetFromDB(v int64) uint64 {
	return uint64(v) //nolint:gosec
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func packLimbs(limbs *[cryptoDomain.LimbCount][cryptoDomain.LimbSize]byte) []byte {
	out := make([]byte, 0, cryptoDomain.LimbCount*cryptoDomain.LimbSize)
	for i := range limbs {
		out = append(out, limbs[i][:]...)
	}
	return out
}

func unpackLimbs(raw []byte, dst *[cryptoDomain.LimbCount][cryptoDomain.LimbSize]byte) error {
	if len(raw) != cryptoDomain.LimbCount*cryptoDomain.LimbSize {
		return apperrors.New("stored limbs have invalid length")
	}
	for i := range dst {
		copy(dst[i][:], raw[i*cryptoDomain.LimbSize:])
	}
	return nil
}

func copyFixed(dst []byte, raw []byte, field string) error {
	if len(raw) != len(dst) {
		return apperrors.New("stored " + field + " has invalid length")
	}
	copy(dst, raw)
	return nil
}

func scanRequest(row rowScanner) (*resealDomain.ResealRequest, error) {
	var (
		req                          resealDomain.ResealRequest
		buyerKey, capsule, callNonce []byte
		offset                       int64
		signature                    sql.NullString
		createdAt, updatedAt         time.Time
	)
	err := row.Scan(
		&req.ID,
		&req.ListingID,
		&req.RecordID,
		&req.Buyer,
		&req.Payer,
		&buyerKey,
		&capsule,
		&offset,
		&callNonce,
		&req.Status,
		&signature,
		&req.Attempts,
		&req.LastError,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := copyFixed(req.BuyerX25519[:], buyerKey, "buyer key"); err != nil {
		return nil, err
	}
	if err := req.Capsule.UnmarshalBinary(capsule); err != nil {
		return nil, apperrors.Wrap(err, "stored capsule")
	}
	if err := copyFixed(req.CallNonce[:], callNonce, "call nonce"); err != nil {
		return nil, err
	}
	req.ComputationOffset = offsetFromDB(offset)
	req.Signature = signature.String
	req.CreatedAt = createdAt.UTC()
	req.UpdatedAt = updatedAt.UTC()
	return &req, nil
}

func scanResealedCapsule(row rowScanner) (*resealDomain.ResealedCapsule, error) {
	var (
		c                           resealDomain.ResealedCapsule
		requestID                   uuid.NullUUID
		slot                        int64
		encryptionKey, nonce, limbs []byte
		createdAt, updatedAt        time.Time
	)
	err := row.Scan(
		&c.ID,
		&requestID,
		&c.ListingID,
		&c.RecordID,
		&c.Signature,
		&slot,
		&encryptionKey,
		&nonce,
		&limbs,
		&c.BuyerCapsuleBlobID,
		&c.Finalized,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if requestID.Valid {
		id := requestID.UUID
		c.RequestID = &id
	}
	if err := copyFixed(c.EncryptionKey[:], encryptionKey, "encryption key"); err != nil {
		return nil, err
	}
	if err := copyFixed(c.Nonce[:], nonce, "nonce"); err != nil {
		return nil, err
	}
	if err := unpackLimbs(limbs, &c.Limbs); err != nil {
		return nil, err
	}
	c.Slot = uint64(slot) //nolint:gosec
	c.CreatedAt = createdAt.UTC()
	c.UpdatedAt = updatedAt.UTC()
	return &c, nil
}

func collectResealedCapsules(rows *sql.Rows) ([]*resealDomain.ResealedCapsule, error) {
	defer rows.Close() //nolint:errcheck

	var out []*resealDomain.ResealedCapsule
	for rows.Next() {
		c, err := scanResealedCapsule(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan resealed capsule")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate resealed capsules")
	}
	return out, nil
}

func collectRequests(rows *sql.Rows) ([]*resealDomain.ResealRequest, error) {
	defer rows.Close() //nolint:errcheck

	var out []*resealDomain.ResealRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan reseal request")
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate reseal requests")
	}
	return out, nil
}
