package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chronicle/internal/traits"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
	pkgerrors "github.com/angelmondragon/chronicle/pkg/errors"
	"github.com/angelmondragon/chronicle/pkg/outbox"
	"github.com/angelmondragon/chronicle/pkg/outbox/payloads"
	"github.com/angelmondragon/chronicle/pkg/validate"
)

// SpendInput describes a trait purchase. The cost is reserved immediately;
// the new rating is chosen when the request is approved.
type SpendInput struct {
	CharacterID uuid.UUID       `json:"character_id" validate:"required"`
	TraitType   enums.TraitType `json:"trait_type" validate:"required,trait_type"`
	TraitName   string          `json:"trait_name" validate:"required,max=64"`
	Cost        int             `json:"cost" validate:"gt=0"`
	RequestedBy string          `json:"requested_by" validate:"max=128"`
}

// Spend debits cost from the character and records a pending request.
func (e *Engine) Spend(ctx context.Context, input SpendInput) (*models.SpendRequest, error) {
	started := time.Now()
	ctx = e.withActor(e.withCharacter(ctx, input.CharacterID), input.RequestedBy)
	request, err := e.spend(ctx, input)
	e.finish(ctx, "spend", started, err)
	return request, err
}

func (e *Engine) spend(ctx context.Context, input SpendInput) (*models.SpendRequest, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	name := traits.NormalizeName(input.TraitName)
	if err := traits.ValidateName(input.TraitType, name); err != nil {
		return nil, err
	}

	var request *models.SpendRequest
	err := e.mutate(ctx, func(tx *gorm.DB, held *heldLocks) error {
		if err := e.acquire(ctx, held, characterKey(input.CharacterID)); err != nil {
			return err
		}
		chars := e.characters.WithTx(tx)
		character, err := chars.LockForUpdate(ctx, input.CharacterID)
		if err != nil {
			return err
		}
		if !character.Status.CanSpend() {
			return inactive(character)
		}
		if character.XP < input.Cost {
			return pkgerrors.New(pkgerrors.CodeInsufficientBalance,
				fmt.Sprintf("spend of %d xp exceeds balance of %d", input.Cost, character.XP)).
				WithDetails(map[string]int{"balance": character.XP, "cost": input.Cost})
		}

		balance := character.XP - input.Cost
		if err := chars.SetXP(ctx, character.ID, balance); err != nil {
			return err
		}
		request = &models.SpendRequest{
			CharacterID: character.ID,
			TraitName:   name,
			TraitType:   input.TraitType,
			Cost:        input.Cost,
			State:       enums.SpendStatePending,
			CreatedAt:   e.clock(),
		}
		if err := e.spends.WithTx(tx).Create(ctx, request); err != nil {
			return err
		}
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventXPSpendRequested,
			AggregateType: enums.AggregateSpendRequest,
			AggregateID:   request.ID,
			Actor:         actorRef(input.RequestedBy, "player"),
			OccurredAt:    request.CreatedAt,
			Data: payloads.XPSpendRequestedEvent{
				SpendRequestID: request.ID,
				CharacterID:    character.ID,
				TraitType:      request.TraitType,
				TraitName:      request.TraitName,
				Cost:           request.Cost,
				BalanceAfter:   balance,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// ApproveSpend writes newTraitValue to the character's sheet and closes the
// request. An invalid rating rolls everything back and leaves it pending.
func (e *Engine) ApproveSpend(ctx context.Context, id uuid.UUID, newTraitValue int, approver string) (*models.SpendRequest, error) {
	started := time.Now()
	ctx = e.withActor(ctx, approver)
	request, err := e.approveSpend(ctx, id, newTraitValue, approver)
	e.finish(ctx, "approve_spend", started, err)
	return request, err
}

func (e *Engine) approveSpend(ctx context.Context, id uuid.UUID, newTraitValue int, approver string) (*models.SpendRequest, error) {
	if err := requireID("spend_request_id", id); err != nil {
		return nil, err
	}
	if err := requireActor("approver", approver); err != nil {
		return nil, err
	}

	var request *models.SpendRequest
	err := e.mutate(ctx, func(tx *gorm.DB, held *heldLocks) error {
		if err := e.acquire(ctx, held, spendKey(id)); err != nil {
			return err
		}
		repo := e.spends.WithTx(tx)
		locked, err := repo.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if locked.State != enums.SpendStatePending {
			return ErrAlreadyProcessed
		}

		update, err := traits.New(locked.TraitType, locked.TraitName, newTraitValue)
		if err != nil {
			return err
		}
		now := e.clock()
		if err := e.characters.WithTx(tx).UpsertTrait(ctx, &models.CharacterTrait{
			CharacterID: locked.CharacterID,
			TraitType:   update.TraitType(),
			TraitName:   update.TraitName(),
			Value:       update.Rating(),
			UpdatedAt:   now,
		}); err != nil {
			return err
		}

		rating := update.Rating()
		locked.State = enums.SpendStateApproved
		locked.TraitValue = &rating
		locked.ResolvedAt = &now
		locked.ResolvedBy = &approver
		if err := repo.SaveResolution(ctx, locked); err != nil {
			return err
		}
		request = locked
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventXPSpendApproved,
			AggregateType: enums.AggregateSpendRequest,
			AggregateID:   locked.ID,
			Actor:         actorRef(approver, "storyteller"),
			OccurredAt:    now,
			Data: payloads.XPSpendApprovedEvent{
				SpendRequestID: locked.ID,
				CharacterID:    locked.CharacterID,
				TraitType:      locked.TraitType,
				TraitName:      locked.TraitName,
				TraitValue:     rating,
				ApprovedBy:     approver,
				ApprovedAt:     now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// DenySpend closes the request as denied. Under DenialRefund the reserved
// cost is credited back to the character.
func (e *Engine) DenySpend(ctx context.Context, id uuid.UUID, approver string) (*models.SpendRequest, error) {
	started := time.Now()
	ctx = e.withActor(ctx, approver)
	request, err := e.denySpend(ctx, id, approver)
	e.finish(ctx, "deny_spend", started, err)
	return request, err
}

func (e *Engine) denySpend(ctx context.Context, id uuid.UUID, approver string) (*models.SpendRequest, error) {
	if err := requireID("spend_request_id", id); err != nil {
		return nil, err
	}
	if err := requireActor("approver", approver); err != nil {
		return nil, err
	}

	var request *models.SpendRequest
	err := e.mutate(ctx, func(tx *gorm.DB, held *heldLocks) error {
		if err := e.acquire(ctx, held, spendKey(id)); err != nil {
			return err
		}
		repo := e.spends.WithTx(tx)
		locked, err := repo.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if locked.State != enums.SpendStatePending {
			return ErrAlreadyProcessed
		}

		if e.denialPolicy == DenialRefund {
			if err := e.acquire(ctx, held, characterKey(locked.CharacterID)); err != nil {
				return err
			}
			chars := e.characters.WithTx(tx)
			character, err := chars.LockForUpdate(ctx, locked.CharacterID)
			if err != nil {
				return err
			}
			if err := chars.SetXP(ctx, character.ID, character.XP+locked.Cost); err != nil {
				return err
			}
			locked.Refunded = true
		}

		now := e.clock()
		locked.State = enums.SpendStateDenied
		locked.ResolvedAt = &now
		locked.ResolvedBy = &approver
		if err := repo.SaveResolution(ctx, locked); err != nil {
			return err
		}
		request = locked
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventXPSpendDenied,
			AggregateType: enums.AggregateSpendRequest,
			AggregateID:   locked.ID,
			Actor:         actorRef(approver, "storyteller"),
			OccurredAt:    now,
			Data: payloads.XPSpendDeniedEvent{
				SpendRequestID: locked.ID,
				CharacterID:    locked.CharacterID,
				Cost:           locked.Cost,
				Refunded:       locked.Refunded,
				DeniedBy:       approver,
				DeniedAt:       now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func inactive(character *models.Character) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("character is %s", character.Status)).
		WithDetails(map[string]string{"status": string(character.Status)})
}

func actorRef(name, role string) *outbox.ActorRef {
	if name == "" {
		return nil
	}
	return &outbox.ActorRef{Name: name, Role: role}
}
