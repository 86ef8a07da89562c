package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/chronicle/internal/awards"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
	"github.com/angelmondragon/chronicle/pkg/outbox/payloads"
)

func (h *harness) event(t *testing.T, kind enums.AwardEventKind, flags awards.StoryFlags, members ...uuid.UUID) *models.AwardEvent {
	t.Helper()
	event, err := h.engine.CreateAwardEvent(context.Background(), CreateAwardEventInput{
		Kind:    kind,
		Title:   "The Long Night",
		Flags:   flags,
		Members: members,
	})
	require.NoError(t, err)
	return event
}

func TestAwardGroupScene(t *testing.T) {
	h := newHarness(t)
	c1 := h.character(t, "Ana", 0)
	c2 := h.character(t, "Bo", 2)
	c3 := h.character(t, "Cy", 5)
	event := h.event(t, enums.AwardEventKindScene, awards.StoryFlags{}, c1.ID, c2.ID, c3.ID)

	count, err := h.engine.AwardGroup(context.Background(), event.ID, map[uuid.UUID]bool{
		c1.ID: true,
		c2.ID: true,
		c3.ID: false,
	}, "st-anna")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, 1, h.balance(t, c1.ID))
	require.Equal(t, 3, h.balance(t, c2.ID))
	require.Equal(t, 5, h.balance(t, c3.ID))

	var payload payloads.XPGroupAwardedEvent
	h.eventData(t, enums.AggregateAwardEvent, event.ID, enums.EventXPGroupAwarded, &payload)
	require.Equal(t, 1, payload.Amount)
	require.ElementsMatch(t, []uuid.UUID{c1.ID, c2.ID}, payload.CharacterIDs)
}

func TestAwardGroupStoryCountsFlags(t *testing.T) {
	h := newHarness(t)
	c1 := h.character(t, "Ana", 1)
	event := h.event(t, enums.AwardEventKindStory, awards.StoryFlags{Success: true, Danger: true, Drama: true}, c1.ID)

	count, err := h.engine.AwardGroup(context.Background(), event.ID, map[uuid.UUID]bool{c1.ID: true}, "st-anna")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, 4, h.balance(t, c1.ID))
}

func TestAwardGroupIsIdempotent(t *testing.T) {
	h := newHarness(t)
	c1 := h.character(t, "Ana", 0)
	event := h.event(t, enums.AwardEventKindScene, awards.StoryFlags{}, c1.ID)
	selection := map[uuid.UUID]bool{c1.ID: true}

	_, err := h.engine.AwardGroup(context.Background(), event.ID, selection, "st-anna")
	require.NoError(t, err)

	count, err := h.engine.AwardGroup(context.Background(), event.ID, selection, "st-anna")
	require.ErrorIs(t, err, ErrAlreadyAwarded)
	require.Zero(t, count)
	require.Equal(t, 1, h.balance(t, c1.ID))
	require.Equal(t, []enums.OutboxEventType{enums.EventXPGroupAwarded},
		h.eventTypes(t, enums.AggregateAwardEvent, event.ID))
}

func TestAwardGroupRejectsNonMember(t *testing.T) {
	h := newHarness(t)
	c1 := h.character(t, "Ana", 0)
	outsider := h.character(t, "Zed", 0)
	event := h.event(t, enums.AwardEventKindScene, awards.StoryFlags{}, c1.ID)

	_, err := h.engine.AwardGroup(context.Background(), event.ID, map[uuid.UUID]bool{
		c1.ID:       true,
		outsider.ID: true,
	}, "st-anna")
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.Equal(t, 0, h.balance(t, c1.ID))
	require.Equal(t, 0, h.balance(t, outsider.ID))

	count, err := h.engine.AwardGroup(context.Background(), event.ID, map[uuid.UUID]bool{c1.ID: true}, "st-anna")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestAwardGroupIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	alive := h.character(t, "Ana", 0)
	dead := h.characterWithStatus(t, "Bo", 0, enums.CharacterStatusDeceased)
	retired := h.characterWithStatus(t, "Cy", 0, enums.CharacterStatusRetired)
	event := h.event(t, enums.AwardEventKindScene, awards.StoryFlags{}, alive.ID, dead.ID, retired.ID)

	_, err := h.engine.AwardGroup(context.Background(), event.ID, map[uuid.UUID]bool{
		alive.ID:   true,
		dead.ID:    true,
		retired.ID: true,
	}, "st-anna")
	require.ErrorIs(t, err, ErrCharacterInactive)
	require.Equal(t, 0, h.balance(t, alive.ID))
	require.Equal(t, 0, h.balance(t, retired.ID))
	require.Empty(t, h.eventTypes(t, enums.AggregateAwardEvent, event.ID))

	count, err := h.engine.AwardGroup(context.Background(), event.ID, map[uuid.UUID]bool{
		alive.ID:   true,
		retired.ID: true,
	}, "st-anna")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, 1, h.balance(t, retired.ID))
}

func TestAwardGroupErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.AwardGroup(ctx, uuid.New(), nil, "st-anna")
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = h.engine.AwardGroup(ctx, uuid.New(), nil, "")
	require.ErrorIs(t, err, ErrValidationFailed)

	_, err = h.engine.CreateAwardEvent(ctx, CreateAwardEventInput{Kind: "chapter", Title: "x", Members: []uuid.UUID{uuid.New()}})
	require.ErrorIs(t, err, ErrValidationFailed)

	_, err = h.engine.CreateAwardEvent(ctx, CreateAwardEventInput{Kind: enums.AwardEventKindScene, Title: "x"})
	require.ErrorIs(t, err, ErrValidationFailed)
}
