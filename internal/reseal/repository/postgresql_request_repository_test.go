package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	resealDomain "github.com/chainsensors/capsules/internal/reseal/domain"
)

func TestPostgreSQLRequestRepository_Create(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRequestRepository(db)
		req := testRequest()
		capsule, err := req.Capsule.MarshalBinary()
		require.NoError(t, err)

		mock.ExpectExec("INSERT INTO reseal_requests").
			WithArgs(
				req.ID,
				req.ListingID,
				req.RecordID,
				req.Buyer,
				req.Payer,
				req.BuyerX25519[:],
				capsule,
				offsetToDB(req.ComputationOffset),
				req.CallNonce[:],
				string(req.Status),
				"sig",
				1,
				nil,
				req.CreatedAt,
				req.UpdatedAt,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(context.Background(), req))
	})

	t.Run("outstanding request collides", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRequestRepository(db)

		mock.ExpectExec("INSERT INTO reseal_requests").
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(context.Background(), testRequest())
		assert.ErrorIs(t, err, resealDomain.ErrCorrelationAmbiguity)
	})
}

func TestPostgreSQLRequestRepository_Update(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRequestRepository(db)
		req := testRequest()

		mock.ExpectExec("UPDATE reseal_requests").
			WithArgs(
				offsetToDB(req.ComputationOffset),
				req.CallNonce[:],
				string(req.Status),
				"sig",
				1,
				nil,
				req.UpdatedAt,
				req.ID,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(context.Background(), req))
	})

	t.Run("missing request", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRequestRepository(db)

		mock.ExpectExec("UPDATE reseal_requests").WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(context.Background(), testRequest())
		assert.ErrorIs(t, err, resealDomain.ErrRequestNotFound)
	})
}

func TestPostgreSQLRequestRepository_Get(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRequestRepository(db)
		req := testRequest()

		mock.ExpectQuery("SELECT (.+) FROM reseal_requests WHERE id = \\$1").
			WithArgs(req.ID).
			WillReturnRows(requestRow(t, req, req.ID.String()))

		got, err := repo.Get(context.Background(), req.ID)
		require.NoError(t, err)
		assert.Equal(t, req, got)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRequestRepository(db)
		req := testRequest()

		mock.ExpectQuery("SELECT (.+) FROM reseal_requests").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.Get(context.Background(), req.ID)
		assert.ErrorIs(t, err, resealDomain.ErrRequestNotFound)
	})
}

func TestPostgreSQLRequestRepository_GetOutstanding(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLRequestRepository(db)
	req := testRequest()

	mock.ExpectQuery("SELECT (.+) FROM reseal_requests (.+) FOR UPDATE").
		WithArgs(req.ListingID, req.Buyer, "built", "submitted", "acknowledged").
		WillReturnRows(requestRow(t, req, req.ID.String()))

	got, err := repo.GetOutstanding(context.Background(), req.ListingID, req.Buyer)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, uint64(1<<63+5), got.ComputationOffset)
}

func TestPostgreSQLRequestRepository_ListAwaitingResult(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLRequestRepository(db)
	req := testRequest()

	mock.ExpectQuery("SELECT (.+) FROM reseal_requests").
		WithArgs("submitted", "acknowledged").
		WillReturnRows(requestRow(t, req, req.ID.String()))

	got, err := repo.ListAwaitingResult(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, req.RecordID, got[0].RecordID)
}

func TestPostgreSQLRequestRepository_ReserveOffset(t *testing.T) {
	offset := &resealDomain.ComputationOffset{
		Offset:    42,
		RequestID: testRequest().ID,
		Status:    resealDomain.OffsetStatusPending,
	}

	t.Run("success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRequestRepository(db)

		mock.ExpectExec("INSERT INTO computation_offsets").
			WithArgs(int64(42), offset.RequestID, "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.ReserveOffset(context.Background(), offset))
	})

	t.Run("offset already used", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRequestRepository(db)

		mock.ExpectExec("INSERT INTO computation_offsets").
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.ReserveOffset(context.Background(), offset)
		assert.ErrorIs(t, err, resealDomain.ErrOffsetCollision)
	})
}

func TestPostgreSQLRequestRepository_UpdateOffsetStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLRequestRepository(db)

	mock.ExpectExec("UPDATE computation_offsets").
		WithArgs("unknown", int64(-1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateOffsetStatus(context.Background(), ^uint64(0), resealDomain.OffsetStatusUnknown)
	require.NoError(t, err)
}
