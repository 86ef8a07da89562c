package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chronicle/internal/awards"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
	pkgerrors "github.com/angelmondragon/chronicle/pkg/errors"
	"github.com/angelmondragon/chronicle/pkg/outbox"
	"github.com/angelmondragon/chronicle/pkg/outbox/payloads"
	"github.com/angelmondragon/chronicle/pkg/validate"
)

// CreateAwardEventInput describes a finished scene or story and who took part.
type CreateAwardEventInput struct {
	Kind    enums.AwardEventKind `json:"kind" validate:"required,award_kind"`
	Title   string               `json:"title" validate:"required,max=200"`
	Flags   awards.StoryFlags    `json:"flags"`
	Members []uuid.UUID          `json:"members" validate:"required,min=1"`
}

// CreateAwardEvent records an event and snapshots its members. Nothing is
// credited until AwardGroup runs.
func (e *Engine) CreateAwardEvent(ctx context.Context, input CreateAwardEventInput) (*models.AwardEvent, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	for _, id := range input.Members {
		if err := requireID("members", id); err != nil {
			return nil, err
		}
	}
	event := &models.AwardEvent{
		Kind:  input.Kind,
		Title: strings.TrimSpace(input.Title),
	}
	if input.Kind == enums.AwardEventKindStory {
		event.Success = input.Flags.Success
		event.Danger = input.Flags.Danger
		event.Growth = input.Flags.Growth
		event.Drama = input.Flags.Drama
		event.Duration = input.Flags.Duration
	}
	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		return e.awards.WithTx(tx).CreateEvent(ctx, event, input.Members)
	})
	if err != nil {
		return nil, normalize(err)
	}
	return event, nil
}

// AwardGroup credits every member marked true in selection with the event's
// per-member amount and marks the event awarded. It returns how many
// characters were credited. The whole award commits or nothing does.
func (e *Engine) AwardGroup(ctx context.Context, eventID uuid.UUID, selection map[uuid.UUID]bool, awardedBy string) (int, error) {
	started := time.Now()
	ctx = e.withActor(ctx, awardedBy)
	if e.logg != nil {
		ctx = e.logg.WithField(ctx, "award_event_id", eventID.String())
	}
	count, err := e.awardGroup(ctx, eventID, selection, awardedBy)
	e.finish(ctx, "award_group", started, err)
	return count, err
}

func (e *Engine) awardGroup(ctx context.Context, eventID uuid.UUID, selection map[uuid.UUID]bool, awardedBy string) (int, error) {
	if err := requireID("event_id", eventID); err != nil {
		return 0, err
	}
	if err := requireActor("awarded_by", awardedBy); err != nil {
		return 0, err
	}

	var credited int
	err := e.mutate(ctx, func(tx *gorm.DB, held *heldLocks) error {
		if err := e.acquire(ctx, held, eventKey(eventID)); err != nil {
			return err
		}
		repo := e.awards.WithTx(tx)
		event, err := repo.LockEventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if event.Awarded {
			return ErrAlreadyAwarded
		}

		members, err := repo.Members(ctx, event.ID)
		if err != nil {
			return err
		}
		memberSet := make(map[uuid.UUID]struct{}, len(members))
		for _, id := range members {
			memberSet[id] = struct{}{}
		}
		var selected []uuid.UUID
		for id, awarded := range selection {
			if !awarded {
				continue
			}
			if _, ok := memberSet[id]; !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound,
					fmt.Sprintf("character %s is not a member of event %s", id, event.ID)).
					WithDetails(map[string]string{"character_id": id.String()})
			}
			selected = append(selected, id)
		}
		selected = sortedIDs(selected)

		if err := e.acquire(ctx, held, characterKeys(selected)...); err != nil {
			return err
		}
		amount := awards.Amount(event)
		chars := e.characters.WithTx(tx)
		for _, id := range selected {
			character, err := chars.LockForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if !character.Status.CanReceive() {
				return inactive(character)
			}
			if err := chars.SetXP(ctx, character.ID, character.XP+amount); err != nil {
				return err
			}
		}

		now := e.clock()
		if err := repo.MarkAwarded(ctx, event.ID, awardedBy, now); err != nil {
			return err
		}
		credited = len(selected)
		if selected == nil {
			selected = []uuid.UUID{}
		}
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventXPGroupAwarded,
			AggregateType: enums.AggregateAwardEvent,
			AggregateID:   event.ID,
			Actor:         actorRef(awardedBy, "storyteller"),
			OccurredAt:    now,
			Data: payloads.XPGroupAwardedEvent{
				EventID:      event.ID,
				Kind:         event.Kind,
				Amount:       amount,
				CharacterIDs: selected,
				AwardedBy:    awardedBy,
				AwardedAt:    now,
			},
		})
	})
	if err != nil {
		return 0, err
	}
	return credited, nil
}
