package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/chronicle/internal/awards"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
	"github.com/angelmondragon/chronicle/pkg/outbox/payloads"
)

var week = time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)

func (h *harness) weekly(t *testing.T, characterID uuid.UUID, categories awards.WeeklyCategories) *models.WeeklyAwardRequest {
	t.Helper()
	request, err := h.engine.RequestWeekly(context.Background(), WeeklyInput{
		CharacterID: characterID,
		Week:        week,
		Categories:  categories,
	})
	require.NoError(t, err)
	return request
}

func TestRequestWeekly(t *testing.T) {
	h := newHarness(t)
	character := h.character(t, "Ana", 0)

	request := h.weekly(t, character.ID, awards.WeeklyCategories{
		Finishing: awards.Category{Earned: true, Ref: "scene-12"},
		RP:        awards.Category{Earned: true, Ref: "journal-3"},
	})
	require.Equal(t, enums.WeeklyStatePending, request.State)
	require.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), request.PeriodStart)

	_, err := h.engine.RequestWeekly(context.Background(), WeeklyInput{
		CharacterID: character.ID,
		Week:        week.Add(48 * time.Hour),
		Categories:  awards.WeeklyCategories{Focus: awards.Category{Earned: true, Ref: "scene-13"}},
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestRequestWeeklyValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	character := h.character(t, "Ana", 0)
	dead := h.characterWithStatus(t, "Bo", 0, enums.CharacterStatusDeceased)

	_, err := h.engine.RequestWeekly(ctx, WeeklyInput{
		CharacterID: character.ID,
		Categories:  awards.WeeklyCategories{Learning: awards.Category{Earned: true}},
	})
	require.ErrorIs(t, err, ErrValidationFailed)

	_, err = h.engine.RequestWeekly(ctx, WeeklyInput{CharacterID: character.ID})
	require.ErrorIs(t, err, ErrValidationFailed)

	_, err = h.engine.RequestWeekly(ctx, WeeklyInput{
		CharacterID: dead.ID,
		Categories:  awards.WeeklyCategories{RP: awards.Category{Earned: true, Ref: "scene-1"}},
	})
	require.ErrorIs(t, err, ErrCharacterInactive)

	_, err = h.engine.RequestWeekly(ctx, WeeklyInput{
		CharacterID: uuid.New(),
		Categories:  awards.WeeklyCategories{RP: awards.Category{Earned: true, Ref: "scene-1"}},
	})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestApproveWeeklyGrantsCategories(t *testing.T) {
	h := newHarness(t)
	character := h.character(t, "Ana", 2)
	request := h.weekly(t, character.ID, awards.WeeklyCategories{
		Finishing: awards.Category{Earned: true, Ref: "scene-12"},
		RP:        awards.Category{Earned: true, Ref: "journal-3"},
	})

	granted, err := h.engine.ApproveWeekly(context.Background(), request.ID, nil, "st-anna")
	require.NoError(t, err)
	require.Equal(t, 2, granted)
	require.Equal(t, 4, h.balance(t, character.ID))

	var payload payloads.XPWeeklyApprovedEvent
	h.eventData(t, enums.AggregateWeeklyRequest, request.ID, enums.EventXPWeeklyApproved, &payload)
	require.Equal(t, 2, payload.XPGranted)
	require.Equal(t, []string{"finishing", "rp"}, payload.Categories)
	require.Equal(t, "2026-03-02", payload.PeriodStart)

	_, err = h.engine.ApproveWeekly(context.Background(), request.ID, nil, "st-anna")
	require.ErrorIs(t, err, ErrAlreadyApproved)
	require.Equal(t, 4, h.balance(t, character.ID))
}

func TestApproveWeeklyMergesOverrides(t *testing.T) {
	h := newHarness(t)
	character := h.character(t, "Ana", 0)
	request := h.weekly(t, character.ID, awards.WeeklyCategories{
		Learning: awards.Category{Earned: true, Ref: "scene-4"},
	})

	_, err := h.engine.ApproveWeekly(context.Background(), request.ID, &awards.WeeklyCategories{
		Standout: awards.Category{Earned: true},
	}, "st-anna")
	require.ErrorIs(t, err, ErrValidationFailed)
	require.Equal(t, 0, h.balance(t, character.ID))

	granted, err := h.engine.ApproveWeekly(context.Background(), request.ID, &awards.WeeklyCategories{
		Standout: awards.Category{Earned: true, Ref: "scene-9"},
		Focus:    awards.Category{Earned: true, Ref: "scene-10"},
	}, "st-anna")
	require.NoError(t, err)
	require.Equal(t, 3, granted)
	require.Equal(t, 3, h.balance(t, character.ID))
}

func TestDenyWeekly(t *testing.T) {
	h := newHarness(t)
	character := h.character(t, "Ana", 1)
	request := h.weekly(t, character.ID, awards.WeeklyCategories{
		Focus: awards.Category{Earned: true, Ref: "scene-2"},
	})

	denied, err := h.engine.DenyWeekly(context.Background(), request.ID, "st-anna")
	require.NoError(t, err)
	require.Equal(t, enums.WeeklyStateDenied, denied.State)
	require.Equal(t, 0, denied.XPGranted)
	require.Equal(t, 1, h.balance(t, character.ID))

	_, err = h.engine.ApproveWeekly(context.Background(), request.ID, nil, "st-anna")
	require.ErrorIs(t, err, ErrAlreadyApproved)
	_, err = h.engine.DenyWeekly(context.Background(), request.ID, "st-anna")
	require.ErrorIs(t, err, ErrAlreadyApproved)
	require.Equal(t, []enums.OutboxEventType{enums.EventXPWeeklyDenied},
		h.eventTypes(t, enums.AggregateWeeklyRequest, request.ID))
}

func TestApproveWeeklyUnknownRequest(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.ApproveWeekly(context.Background(), uuid.New(), nil, "st-anna")
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPendingWeeklyBefore(t *testing.T) {
	h := newHarness(t)
	c1 := h.character(t, "Ana", 0)
	c2 := h.character(t, "Bo", 0)
	old := h.weekly(t, c1.ID, awards.WeeklyCategories{RP: awards.Category{Earned: true, Ref: "s"}})
	_, err := h.engine.RequestWeekly(context.Background(), WeeklyInput{
		CharacterID: c2.ID,
		Week:        week.AddDate(0, 0, 14),
		Categories:  awards.WeeklyCategories{RP: awards.Category{Earned: true, Ref: "s"}},
	})
	require.NoError(t, err)

	rows, err := h.engine.PendingWeeklyBefore(context.Background(), week.AddDate(0, 0, 7), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, old.ID, rows[0].ID)
}
