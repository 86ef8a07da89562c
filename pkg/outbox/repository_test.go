package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/chronicle/pkg/db"
	"github.com/angelmondragon/chronicle/pkg/db/dbtest"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
)

func seedEvent(t *testing.T, client *db.Client, createdAt time.Time) models.OutboxEvent {
	t.Helper()
	row := models.OutboxEvent{
		EventType:     enums.EventXPSpendRequested,
		AggregateType: enums.AggregateSpendRequest,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"data":{}}`),
		CreatedAt:     createdAt.UTC(),
	}
	require.NoError(t, client.DB().Create(&row).Error)
	return row
}

func reload(t *testing.T, client *db.Client, id uuid.UUID) models.OutboxEvent {
	t.Helper()
	var row models.OutboxEvent
	require.NoError(t, client.DB().First(&row, "id = ?", id).Error)
	return row
}

func TestFetchUnpublishedForPublishOrdersAndFilters(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	now := time.Now().UTC()

	second := seedEvent(t, client, now.Add(-time.Minute))
	first := seedEvent(t, client, now.Add(-2*time.Minute))
	exhausted := seedEvent(t, client, now.Add(-3*time.Minute))
	published := seedEvent(t, client, now.Add(-4*time.Minute))

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := repo.MarkTerminalTx(tx, exhausted.ID, errors.New("bad payload"), 5); err != nil {
			return err
		}
		return repo.MarkPublishedTx(tx, published.ID)
	}))

	var rows []models.OutboxEvent
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		rows, err = repo.FetchUnpublishedForPublish(tx, 10, 5)
		return err
	}))
	require.Len(t, rows, 2)
	require.Equal(t, first.ID, rows[0].ID)
	require.Equal(t, second.ID, rows[1].ID)
}

func TestMarkFailedIncrementsAndTruncates(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	row := seedEvent(t, client, time.Now())

	long := make([]byte, maxLastErrorLen+50)
	for i := range long {
		long[i] = 'x'
	}
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := repo.MarkFailedTx(tx, row.ID, errors.New("nats timeout")); err != nil {
			return err
		}
		return repo.MarkFailedTx(tx, row.ID, errors.New(string(long)))
	}))

	got := reload(t, client, row.ID)
	require.Equal(t, 2, got.AttemptCount)
	require.NotNil(t, got.LastError)
	require.Len(t, *got.LastError, maxLastErrorLen)
	require.Nil(t, got.PublishedAt)
}

func TestDeletePublishedBefore(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	now := time.Now().UTC()

	oldPublished := seedEvent(t, client, now.Add(-48*time.Hour))
	oldParked := seedEvent(t, client, now.Add(-48*time.Hour))
	oldPending := seedEvent(t, client, now.Add(-48*time.Hour))
	freshPublished := seedEvent(t, client, now)

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := repo.MarkPublishedTx(tx, oldPublished.ID); err != nil {
			return err
		}
		if err := repo.MarkPublishedTx(tx, freshPublished.ID); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, oldParked.ID, errors.New("terminal"), 10)
	}))

	deleted, err := repo.DeletePublishedBefore(ctx, nil, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, client.DB().Order("created_at ASC").Find(&remaining).Error)
	ids := []uuid.UUID{remaining[0].ID, remaining[1].ID}
	require.ElementsMatch(t, []uuid.UUID{oldPending.ID, freshPublished.ID}, ids)
}

func TestDLQRepositoryInsertAndFind(t *testing.T) {
	client := dbtest.New(t)
	repo := NewDLQRepository(client.DB())
	event := seedEvent(t, client, time.Now())
	msg := "unsupported event type"

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return repo.InsertTx(tx, models.OutboxDLQ{
			EventID:       event.ID,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       event.Payload,
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			ErrorMessage:  &msg,
			AttemptCount:  1,
		})
	}))

	found, err := repo.FindByEventID(context.Background(), event.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, enums.OutboxDLQReasonNonRetryable, found.ErrorReason)

	missing, err := repo.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)
}
