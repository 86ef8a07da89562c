package outbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/chronicle/pkg/db/dbtest"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
)

func TestEmitWritesEnvelopeInsideTx(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)
	ctx := context.Background()
	aggregateID := uuid.New()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventXPGroupAwarded,
			AggregateType: enums.AggregateAwardEvent,
			AggregateID:   aggregateID,
			Actor:         &ActorRef{Name: "st-anna", Role: "storyteller"},
			Data:          map[string]int{"amount": 3},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByAggregate(ctx, enums.AggregateAwardEvent, aggregateID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, enums.EventXPGroupAwarded, rows[0].EventType)
	require.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.Equal(t, rows[0].ID.String(), envelope.EventID)
	require.Equal(t, "st-anna", envelope.Actor.Name)
	require.JSONEq(t, `{"amount":3}`, string(envelope.Data))
}

func TestEmitRollsBackWithTx(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)
	ctx := context.Background()
	aggregateID := uuid.New()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventXPSpendRequested,
			AggregateType: enums.AggregateSpendRequest,
			AggregateID:   aggregateID,
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return gorm.ErrInvalidData
	})
	require.ErrorIs(t, err, gorm.ErrInvalidData)

	rows, err := repo.ListByAggregate(ctx, enums.AggregateSpendRequest, aggregateID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEmitRejectsInvalidInput(t *testing.T) {
	client := dbtest.New(t)
	svc := NewService(NewRepository(client.DB()), nil)
	ctx := context.Background()

	require.Error(t, svc.Emit(ctx, nil, DomainEvent{EventType: enums.EventXPSpendDenied}))
	require.Error(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{EventType: "order_created", AggregateType: enums.AggregateSpendRequest, AggregateID: uuid.New()})
	}))
	require.Error(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{EventType: enums.EventXPSpendDenied, AggregateType: "order", AggregateID: uuid.New()})
	}))
	require.Error(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{EventType: enums.EventXPSpendDenied, AggregateType: enums.AggregateSpendRequest})
	}))

	var count int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}
