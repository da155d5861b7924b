package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsensors/capsules/internal/errors"
)

func TestNewOutboxEvent(t *testing.T) {
	event, err := NewOutboxEvent("reseal.output", map[string]string{"record": "abc"})
	require.NoError(t, err)

	assert.Equal(t, OutboxEventStatusPending, event.Status)
	assert.JSONEq(t, `{"record":"abc"}`, event.Payload)
	assert.False(t, event.NextAttempt.IsZero())

	var out struct {
		Record string `json:"record"`
	}
	require.NoError(t, event.DecodePayload(&out))
	assert.Equal(t, "abc", out.Record)
}

func TestOutboxEvent_DecodePayloadInvalid(t *testing.T) {
	event := &OutboxEvent{EventType: "reseal.output", Payload: "not json"}
	var out map[string]any
	assert.ErrorIs(t, event.DecodePayload(&out), ErrUnknownEventType)
}

func TestOutboxEvent_MarkRetry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	event := &OutboxEvent{Status: OutboxEventStatusPending}

	event.MarkRetry(errors.New("upload failed"), now, 3, time.Minute)
	assert.Equal(t, OutboxEventStatusPending, event.Status)
	assert.Equal(t, 1, event.Retries)
	assert.Equal(t, now.Add(time.Minute), event.NextAttempt)
	require.NotNil(t, event.LastError)
	assert.Equal(t, "upload failed", *event.LastError)

	event.MarkRetry(errors.New("upload failed"), now, 3, time.Minute)
	assert.Equal(t, now.Add(2*time.Minute), event.NextAttempt)

	event.MarkRetry(errors.New("submit failed"), now, 3, time.Minute)
	assert.Equal(t, OutboxEventStatusFailed, event.Status)
	assert.Equal(t, "submit failed", *event.LastError)
}

func TestOutboxEvent_MarkProcessed(t *testing.T) {
	now := time.Now().UTC()
	event := &OutboxEvent{Status: OutboxEventStatusPending}
	event.MarkProcessed(now)

	assert.Equal(t, OutboxEventStatusProcessed, event.Status)
	require.NotNil(t, event.ProcessedAt)
	assert.Equal(t, now, *event.ProcessedAt)
}
