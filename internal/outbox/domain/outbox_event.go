// Package domain defines the transactional outbox entities.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/chainsensors/capsules/internal/errors"
)

// OutboxEventStatus represents the status of an outbox event
type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "pending"
	OutboxEventStatusProcessed OutboxEventStatus = "processed"
	OutboxEventStatusFailed    OutboxEventStatus = "failed"
)

// ErrUnknownEventType is returned by the dispatcher for events no handler accepts.
var ErrUnknownEventType = errors.Wrap(errors.ErrInvalidInput, "unknown outbox event type")

// OutboxEvent is a unit of follow-up work appended in the same transaction as the state
// change that caused it.
type OutboxEvent struct {
	ID          uuid.UUID
	EventType   string
	Payload     string
	Status      OutboxEventStatus
	Retries     int
	LastError   *string
	NextAttempt time.Time
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewOutboxEvent creates a pending event with payload encoded as JSON.
func NewOutboxEvent(eventType string, payload any) (*OutboxEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode outbox payload")
	}
	now := time.Now().UTC()
	return &OutboxEvent{
		ID:          uuid.Must(uuid.NewV7()),
		EventType:   eventType,
		Payload:     string(raw),
		Status:      OutboxEventStatusPending,
		NextAttempt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// DecodePayload unmarshals the JSON payload into out.
func (e *OutboxEvent) DecodePayload(out any) error {
	if err := json.Unmarshal([]byte(e.Payload), out); err != nil {
		return errors.Wrapf(ErrUnknownEventType, "invalid %s payload: %v", e.EventType, err)
	}
	return nil
}

// MarkProcessed records a successful attempt.
func (e *OutboxEvent) MarkProcessed(now time.Time) {
	e.Status = OutboxEventStatusProcessed
	e.ProcessedAt = &now
	e.UpdatedAt = now
}

// MarkRetry records a failed attempt. The event becomes failed after maxRetries attempts;
// otherwise the next attempt is delayed linearly by retryInterval.
func (e *OutboxEvent) MarkRetry(cause error, now time.Time, maxRetries int, retryInterval time.Duration) {
	e.Retries++
	msg := cause.Error()
	e.LastError = &msg
	e.UpdatedAt = now
	if e.Retries >= maxRetries {
		e.Status = OutboxEventStatusFailed
		return
	}
	e.NextAttempt = now.Add(time.Duration(e.Retries) * retryInterval)
}
