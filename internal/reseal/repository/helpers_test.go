package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func filledKey(b byte) ledgerDomain.PublicKey {
	var pk ledgerDomain.PublicKey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func testRequest() *resealDomain.ResealRequest {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req := &resealDomain.ResealRequest{
		ID:                uuid.Must(uuid.NewV7()),
		ListingID:         filledKey(1),
		RecordID:          filledKey(2),
		Buyer:             filledKey(3),
		Payer:             filledKey(4),
		ComputationOffset: 1<<63 + 5,
		Status:            resealDomain.RequestStatusAcknowledged,
		Signature:         "sig",
		Attempts:          1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for i := range req.BuyerX25519 {
		req.BuyerX25519[i] = 9
	}
	req.Capsule.Nonce[0] = 6
	req.Capsule.Limbs[0][0] = 7
	req.Capsule.Limbs[3][31] = 5
	req.CallNonce = req.Capsule.Nonce
	return req
}

func requestRow(t *testing.T, req *resealDomain.ResealRequest, id any) *sqlmock.Rows {
	t.Helper()
	capsule, err := req.Capsule.MarshalBinary()
	require.NoError(t, err)
	return sqlmock.NewRows([]string{
		"id", "listing_id", "record_id", "buyer", "payer", "buyer_x25519", "capsule",
		"computation_offset", "call_nonce", "status", "signature", "attempts", "last_error",
		"created_at", "updated_at",
	}).AddRow(
		id,
		req.ListingID.String(),
		req.RecordID.String(),
		req.Buyer.String(),
		req.Payer.String(),
		req.BuyerX25519[:],
		capsule,
		offsetToDB(req.ComputationOffset),
		req.CallNonce[:],
		string(req.Status),
		req.Signature,
		req.Attempts,
		nil,
		req.CreatedAt,
		req.UpdatedAt,
	)
}

func testResealedCapsule() *resealDomain.ResealedCapsule {
	out := &ledgerDomain.ResealOutput{Listing: filledKey(1), Record: filledKey(2)}
	out.EncryptionKey[0] = 8
	out.Nonce[0] = 4
	out.Limbs[0][0] = 1
	out.Limbs[3][31] = 2
	c := resealDomain.NewResealedCapsule(out, "sig", 77)
	requestID := uuid.Must(uuid.NewV7())
	c.RequestID = &requestID
	return c
}

func resealedCapsuleRow(c *resealDomain.ResealedCapsule, id, requestID any) *sqlmock.Rows {
	var cid any
	if c.BuyerCapsuleBlobID != nil {
		cid = *c.BuyerCapsuleBlobID
	}
	return sqlmock.NewRows([]string{
		"id", "request_id", "listing_id", "record_id", "signature", "slot", "encryption_key", "nonce",
		"limbs", "buyer_capsule_blob_id", "finalized", "created_at", "updated_at",
	}).AddRow(
		id,
		requestID,
		c.ListingID.String(),
		c.RecordID.String(),
		c.Signature,
		int64(c.Slot), //nolint:gosec
		c.EncryptionKey[:],
		c.Nonce[:],
		packLimbs(&c.Limbs),
		cid,
		c.Finalized,
		c.CreatedAt,
		c.UpdatedAt,
	)
}
