package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/chronicle/pkg/config"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
	"github.com/angelmondragon/chronicle/pkg/outbox"
	"github.com/angelmondragon/chronicle/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	spendID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.XPSpendRequestedEvent{
		SpendRequestID: spendID,
		CharacterID:    uuid.New(),
		TraitType:      enums.TraitTypeAttribute,
		TraitName:      "strength",
		Cost:           8,
		BalanceAfter:   2,
	})

	event := models.OutboxEvent{
		EventType:     enums.EventXPSpendRequested,
		AggregateType: enums.AggregateSpendRequest,
		AggregateID:   spendID,
		Payload:       mustEnvelope(t, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	require.Equal(t, "chronicle.xp.xp_spend_requested", resolved.Descriptor.Subject)
	require.Equal(t, enums.EventXPSpendRequested, resolved.Descriptor.EventType)

	payload, ok := resolved.Payload.(*payloads.XPSpendRequestedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	require.Equal(t, spendID, payload.SpendRequestID)
	require.Equal(t, 8, payload.Cost)
	require.NotEmpty(t, resolved.Envelope.EventID)
	require.False(t, resolved.Envelope.OccurredAt.IsZero())
}

func TestEventRegistrySubjectsCoverEveryEvent(t *testing.T) {
	reg := newTestEventRegistry(t)
	require.ElementsMatch(t, []string{
		"chronicle.xp.xp_spend_requested",
		"chronicle.xp.xp_spend_approved",
		"chronicle.xp.xp_spend_denied",
		"chronicle.xp.xp_group_awarded",
		"chronicle.xp.xp_weekly_approved",
		"chronicle.xp.xp_weekly_denied",
	}, reg.Subjects())
}

func TestNewEventRegistryRequiresPrefix(t *testing.T) {
	_, err := NewEventRegistry(config.NATSConfig{SubjectPrefix: " . "})
	require.Error(t, err)
}

func TestEventRegistryResolveFailures(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("xp_unknown"),
			AggregateType: enums.AggregateSpendRequest,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventXPGroupAwarded,
			AggregateType: enums.AggregateSpendRequest,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{"amount":1}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventXPWeeklyApproved,
			AggregateType: enums.AggregateWeeklyRequest,
			AggregateID:   uuid.Nil,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventXPSpendDenied,
			AggregateType: enums.AggregateSpendRequest,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"broken envelope": {
			EventType:     enums.EventXPSpendDenied,
			AggregateType: enums.AggregateSpendRequest,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"version":`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			require.True(t, errors.As(err, &nonRetry), "expected non-retryable error, got %T", err)
		})
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.NATSConfig{SubjectPrefix: "chronicle.xp."})
	require.NoError(t, err)
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	return data
}
