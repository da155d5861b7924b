package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsensors/capsules/internal/outbox/domain"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, func() *PostgreSQLOutboxEventRepository, func() *MySQLOutboxEventRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return mock,
		func() *PostgreSQLOutboxEventRepository { return NewPostgreSQLOutboxEventRepository(db) },
		func() *MySQLOutboxEventRepository { return NewMySQLOutboxEventRepository(db) }
}

func outboxRows(events ...*domain.OutboxEvent) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "event_type", "payload", "status", "retries", "last_error", "next_attempt_at",
		"processed_at", "created_at", "updated_at",
	})
	for _, e := range events {
		rows.AddRow(e.ID.String(), e.EventType, e.Payload, string(e.Status), e.Retries, nil,
			e.NextAttempt, nil, e.CreatedAt, e.UpdatedAt)
	}
	return rows
}

func TestPostgreSQLOutboxEventRepository_Create(t *testing.T) {
	mock, pg, _ := newMock(t)
	event, err := domain.NewOutboxEvent("reseal.output", map[string]string{"record": "r"})
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(event.ID, "reseal.output", event.Payload, "pending", 0, nil,
			event.NextAttempt, nil, event.CreatedAt, event.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, pg().Create(context.Background(), event))
}

func TestPostgreSQLOutboxEventRepository_GetPendingEvents(t *testing.T) {
	mock, pg, _ := newMock(t)
	first, err := domain.NewOutboxEvent("reseal.output", map[string]string{"record": "a"})
	require.NoError(t, err)
	second, err := domain.NewOutboxEvent("reseal.output", map[string]string{"record": "b"})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM outbox_events (.+) FOR UPDATE SKIP LOCKED").
		WithArgs("pending", 10).
		WillReturnRows(outboxRows(first, second))

	events, err := pg().GetPendingEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.Payload, events[1].Payload)
	assert.Equal(t, domain.OutboxEventStatusPending, events[1].Status)
}

func TestPostgreSQLOutboxEventRepository_Update(t *testing.T) {
	mock, pg, _ := newMock(t)
	event, err := domain.NewOutboxEvent("reseal.output", struct{}{})
	require.NoError(t, err)
	event.MarkProcessed(time.Now().UTC())

	mock.ExpectExec("UPDATE outbox_events").
		WithArgs("processed", 0, nil, event.NextAttempt, *event.ProcessedAt, event.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, pg().Update(context.Background(), event))
}

func TestMySQLOutboxEventRepository_CreateAndScan(t *testing.T) {
	mock, _, my := newMock(t)
	event, err := domain.NewOutboxEvent("reseal.output", struct{}{})
	require.NoError(t, err)
	idBytes, err := event.ID.MarshalBinary()
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(idBytes, "reseal.output", "{}", "pending", 0, nil,
			event.NextAttempt, nil, event.CreatedAt, event.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rows := sqlmock.NewRows([]string{
		"id", "event_type", "payload", "status", "retries", "last_error", "next_attempt_at",
		"processed_at", "created_at", "updated_at",
	}).AddRow(idBytes, "reseal.output", "{}", "pending", 0, nil, event.NextAttempt, nil,
		event.CreatedAt, event.UpdatedAt)
	mock.ExpectQuery("SELECT (.+) FROM outbox_events").
		WithArgs("pending", 5).
		WillReturnRows(rows)

	repo := my()
	require.NoError(t, repo.Create(context.Background(), event))

	events, err := repo.GetPendingEvents(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
}
