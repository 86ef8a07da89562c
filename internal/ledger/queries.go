package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/chronicle/internal/spends"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
	pkgerrors "github.com/angelmondragon/chronicle/pkg/errors"
	"github.com/angelmondragon/chronicle/pkg/pagination"
	"github.com/angelmondragon/chronicle/pkg/validate"
)

// CreateCharacterInput seeds a character with an opening balance.
type CreateCharacterInput struct {
	Name   string                `json:"name" validate:"required,max=120"`
	XP     int                   `json:"xp" validate:"min=0"`
	Status enums.CharacterStatus `json:"status"`
}

// CreateCharacter inserts a new character. It takes no locks: nobody else
// can reference the row yet.
func (e *Engine) CreateCharacter(ctx context.Context, input CreateCharacterInput) (*models.Character, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	status := input.Status
	if status == "" {
		status = enums.CharacterStatusActive
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid character status").
			WithDetails(map[string]string{"status": "must be active, retired or deceased"})
	}
	character := &models.Character{
		Name:   strings.TrimSpace(input.Name),
		XP:     input.XP,
		Status: status,
	}
	if err := e.characters.Create(ctx, character); err != nil {
		return nil, normalize(err)
	}
	return character, nil
}

// Balance reads the character's current XP without locking.
func (e *Engine) Balance(ctx context.Context, characterID uuid.UUID) (int, error) {
	xp, err := e.characters.Balance(ctx, characterID)
	return xp, normalize(err)
}

// History pages through a character's spend requests, most recent first.
func (e *Engine) History(ctx context.Context, characterID uuid.UUID, params pagination.Params) (*spends.Page, error) {
	page, err := e.spends.History(ctx, characterID, params)
	if err != nil {
		return nil, normalize(err)
	}
	return page, nil
}

// Pending lists a character's unresolved spend requests, oldest first.
func (e *Engine) Pending(ctx context.Context, characterID uuid.UUID) ([]models.SpendRequest, error) {
	rows, err := e.spends.Pending(ctx, characterID)
	if err != nil {
		return nil, normalize(err)
	}
	return rows, nil
}

// Traits returns the character's trait sheet.
func (e *Engine) Traits(ctx context.Context, characterID uuid.UUID) ([]models.CharacterTrait, error) {
	rows, err := e.characters.ListTraits(ctx, characterID)
	if err != nil {
		return nil, normalize(err)
	}
	return rows, nil
}

// PendingWeeklyBefore lists pending weekly requests for weeks that started
// before cutoff, oldest first.
func (e *Engine) PendingWeeklyBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.WeeklyAwardRequest, error) {
	rows, err := e.awards.ListPendingWeeklyBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, normalize(err)
	}
	return rows, nil
}
