package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/chronicle/pkg/config"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
	"github.com/angelmondragon/chronicle/pkg/outbox"
	"github.com/angelmondragon/chronicle/pkg/outbox/payloads"
	"github.com/google/uuid"
)

// EventDescriptor links an event type to its aggregate/subject/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Subject        string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry, deriving one NATS subject per event
// type under the configured prefix.
func NewEventRegistry(cfg config.NATSConfig) (*EventRegistry, error) {
	prefix := strings.Trim(strings.TrimSpace(cfg.SubjectPrefix), ".")
	if prefix == "" {
		return nil, fmt.Errorf("nats subject prefix is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventXPSpendRequested,
			AggregateType:  enums.AggregateSpendRequest,
			PayloadFactory: func() interface{} { return &payloads.XPSpendRequestedEvent{} },
		},
		{
			EventType:      enums.EventXPSpendApproved,
			AggregateType:  enums.AggregateSpendRequest,
			PayloadFactory: func() interface{} { return &payloads.XPSpendApprovedEvent{} },
		},
		{
			EventType:      enums.EventXPSpendDenied,
			AggregateType:  enums.AggregateSpendRequest,
			PayloadFactory: func() interface{} { return &payloads.XPSpendDeniedEvent{} },
		},
		{
			EventType:      enums.EventXPGroupAwarded,
			AggregateType:  enums.AggregateAwardEvent,
			PayloadFactory: func() interface{} { return &payloads.XPGroupAwardedEvent{} },
		},
		{
			EventType:      enums.EventXPWeeklyApproved,
			AggregateType:  enums.AggregateWeeklyRequest,
			PayloadFactory: func() interface{} { return &payloads.XPWeeklyApprovedEvent{} },
		},
		{
			EventType:      enums.EventXPWeeklyDenied,
			AggregateType:  enums.AggregateWeeklyRequest,
			PayloadFactory: func() interface{} { return &payloads.XPWeeklyDeniedEvent{} },
		},
	} {
		desc.Subject = prefix + "." + string(desc.EventType)
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Subjects lists every subject the registry publishes to.
func (r *EventRegistry) Subjects() []string {
	out := make([]string, 0, len(r.entries))
	for _, desc := range r.entries {
		out = append(out, desc.Subject)
	}
	return out
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
