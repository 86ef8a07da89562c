package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
	"github.com/angelmondragon/chronicle/pkg/logger"
)

const currentVersion = 1

// DomainEvent is a ledger fact to be published after its transaction commits.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("outbox: invalid event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("outbox: invalid aggregate type %q", e.AggregateType)
	case e.AggregateID == uuid.Nil:
		return fmt.Errorf("outbox: %s event without aggregate id", e.EventType)
	}
	return nil
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit enqueues event inside tx, so it commits or rolls back with the
// mutation it describes. The row id doubles as the envelope's event id, which
// subscribers use for deduplication.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return fmt.Errorf("outbox: transaction required")
	}
	if err := event.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("outbox: encode %s data: %w", event.EventType, err)
	}

	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
	}
	envelope := PayloadEnvelope{
		Version:    event.Version,
		EventID:    row.ID.String(),
		OccurredAt: event.OccurredAt.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}
	if envelope.Version == 0 {
		envelope.Version = currentVersion
	}
	if event.OccurredAt.IsZero() {
		envelope.OccurredAt = s.now().UTC()
	}
	if row.Payload, err = json.Marshal(envelope); err != nil {
		return fmt.Errorf("outbox: encode envelope: %w", err)
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}

	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":       envelope.EventID,
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID.String(),
		}), "outbox event queued")
	}
	return nil
}
