package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chronicle/internal/awards"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
	pkgerrors "github.com/angelmondragon/chronicle/pkg/errors"
	"github.com/angelmondragon/chronicle/pkg/outbox"
	"github.com/angelmondragon/chronicle/pkg/outbox/payloads"
)

// WeeklyInput is a character's claim for the week containing Week.
type WeeklyInput struct {
	CharacterID uuid.UUID
	Week        time.Time
	Categories  awards.WeeklyCategories
}

// RequestWeekly records a pending weekly award. A character gets one request
// per week.
func (e *Engine) RequestWeekly(ctx context.Context, input WeeklyInput) (*models.WeeklyAwardRequest, error) {
	started := time.Now()
	ctx = e.withCharacter(ctx, input.CharacterID)
	request, err := e.requestWeekly(ctx, input)
	e.finish(ctx, "request_weekly", started, err)
	return request, err
}

func (e *Engine) requestWeekly(ctx context.Context, input WeeklyInput) (*models.WeeklyAwardRequest, error) {
	if err := requireID("character_id", input.CharacterID); err != nil {
		return nil, err
	}
	if err := input.Categories.Validate(); err != nil {
		return nil, err
	}
	if input.Categories.TotalXP() == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one weekly category must be earned")
	}
	week := input.Week
	if week.IsZero() {
		week = e.clock()
	}

	request := &models.WeeklyAwardRequest{
		CharacterID: input.CharacterID,
		PeriodStart: awards.PeriodStart(week),
		State:       enums.WeeklyStatePending,
	}
	awards.ApplyCategories(request, input.Categories)

	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		character, err := e.characters.WithTx(tx).FindByID(ctx, input.CharacterID)
		if err != nil {
			return err
		}
		if !character.Status.CanReceive() {
			return inactive(character)
		}
		return e.awards.WithTx(tx).CreateWeekly(ctx, request)
	})
	if err != nil {
		return nil, normalize(err)
	}
	return request, nil
}

// ApproveWeekly grants the request's XP. Earned categories in overrides
// replace the stored ones before the total is computed.
func (e *Engine) ApproveWeekly(ctx context.Context, id uuid.UUID, overrides *awards.WeeklyCategories, approver string) (int, error) {
	started := time.Now()
	ctx = e.withActor(ctx, approver)
	granted, err := e.approveWeekly(ctx, id, overrides, approver)
	e.finish(ctx, "approve_weekly", started, err)
	return granted, err
}

func (e *Engine) approveWeekly(ctx context.Context, id uuid.UUID, overrides *awards.WeeklyCategories, approver string) (int, error) {
	if err := requireID("weekly_request_id", id); err != nil {
		return 0, err
	}
	if err := requireActor("approver", approver); err != nil {
		return 0, err
	}

	var granted int
	err := e.mutate(ctx, func(tx *gorm.DB, held *heldLocks) error {
		if err := e.acquire(ctx, held, weeklyKey(id)); err != nil {
			return err
		}
		repo := e.awards.WithTx(tx)
		request, err := repo.LockWeeklyForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if request.State != enums.WeeklyStatePending {
			return ErrAlreadyApproved
		}

		categories := awards.CategoriesOf(request)
		if overrides != nil {
			categories = categories.Merge(*overrides)
		}
		if err := categories.Validate(); err != nil {
			return err
		}

		if err := e.acquire(ctx, held, characterKey(request.CharacterID)); err != nil {
			return err
		}
		chars := e.characters.WithTx(tx)
		character, err := chars.LockForUpdate(ctx, request.CharacterID)
		if err != nil {
			return err
		}
		if !character.Status.CanReceive() {
			return inactive(character)
		}
		xp := categories.TotalXP()
		if err := chars.SetXP(ctx, character.ID, character.XP+xp); err != nil {
			return err
		}

		now := e.clock()
		awards.ApplyCategories(request, categories)
		request.State = enums.WeeklyStateApproved
		request.XPGranted = xp
		request.ResolvedAt = &now
		request.ResolvedBy = &approver
		if err := repo.SaveWeeklyResolution(ctx, request); err != nil {
			return err
		}
		granted = xp
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventXPWeeklyApproved,
			AggregateType: enums.AggregateWeeklyRequest,
			AggregateID:   request.ID,
			Actor:         actorRef(approver, "storyteller"),
			OccurredAt:    now,
			Data: payloads.XPWeeklyApprovedEvent{
				WeeklyRequestID: request.ID,
				CharacterID:     request.CharacterID,
				PeriodStart:     awards.FormatPeriod(request.PeriodStart),
				XPGranted:       xp,
				Categories:      categories.Earned(),
				ApprovedBy:      approver,
				ApprovedAt:      now,
			},
		})
	})
	if err != nil {
		return 0, err
	}
	return granted, nil
}

// DenyWeekly closes the request without granting XP.
func (e *Engine) DenyWeekly(ctx context.Context, id uuid.UUID, approver string) (*models.WeeklyAwardRequest, error) {
	started := time.Now()
	ctx = e.withActor(ctx, approver)
	request, err := e.denyWeekly(ctx, id, approver)
	e.finish(ctx, "deny_weekly", started, err)
	return request, err
}

func (e *Engine) denyWeekly(ctx context.Context, id uuid.UUID, approver string) (*models.WeeklyAwardRequest, error) {
	if err := requireID("weekly_request_id", id); err != nil {
		return nil, err
	}
	if err := requireActor("approver", approver); err != nil {
		return nil, err
	}

	var request *models.WeeklyAwardRequest
	err := e.mutate(ctx, func(tx *gorm.DB, held *heldLocks) error {
		if err := e.acquire(ctx, held, weeklyKey(id)); err != nil {
			return err
		}
		repo := e.awards.WithTx(tx)
		locked, err := repo.LockWeeklyForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if locked.State != enums.WeeklyStatePending {
			return ErrAlreadyApproved
		}

		now := e.clock()
		locked.State = enums.WeeklyStateDenied
		locked.XPGranted = 0
		locked.ResolvedAt = &now
		locked.ResolvedBy = &approver
		if err := repo.SaveWeeklyResolution(ctx, locked); err != nil {
			return err
		}
		request = locked
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventXPWeeklyDenied,
			AggregateType: enums.AggregateWeeklyRequest,
			AggregateID:   locked.ID,
			Actor:         actorRef(approver, "storyteller"),
			OccurredAt:    now,
			Data: payloads.XPWeeklyDeniedEvent{
				WeeklyRequestID: locked.ID,
				CharacterID:     locked.CharacterID,
				PeriodStart:     awards.FormatPeriod(locked.PeriodStart),
				DeniedBy:        approver,
				DeniedAt:        now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}
