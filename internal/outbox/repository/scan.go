// Package repository provides data persistence implementations for outbox entities.
package repository

import (
	"database/sql"

	"github.com/chainsensors/capsules/internal/errors"
	"github.com/chainsensors/capsules/internal/outbox/domain"
)

const outboxColumns = `id, event_type, payload, status, retries, last_error, next_attempt_at, processed_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEvent reads one row. uuid.UUID scans both the PostgreSQL text form and the MySQL
// BINARY(16) form.
func scanEvent(row rowScanner) (*domain.OutboxEvent, error) {
	var event domain.OutboxEvent
	err := row.Scan(
		&event.ID,
		&event.EventType,
		&event.Payload,
		&event.Status,
		&event.Retries,
		&event.LastError,
		&event.NextAttempt,
		&event.ProcessedAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	event.NextAttempt = event.NextAttempt.UTC()
	event.CreatedAt = event.CreatedAt.UTC()
	event.UpdatedAt = event.UpdatedAt.UTC()
	return &event, nil
}

func collectEvents(rows *sql.Rows) ([]*domain.OutboxEvent, error) {
	defer rows.Close() //nolint:errcheck

	var events []*domain.OutboxEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan outbox event")
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate outbox events")
	}
	return events, nil
}
