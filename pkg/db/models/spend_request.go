package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chronicle/pkg/enums"
)

// SpendRequest is a trait purchase whose cost was reserved when it was created.
type SpendRequest struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	CharacterID uuid.UUID        `gorm:"column:character_id;type:uuid;not null;index:idx_spend_requests_character_created,priority:1"`
	TraitName   string           `gorm:"column:trait_name;not null"`
	TraitType   enums.TraitType  `gorm:"column:trait_type;type:trait_type_enum;not null"`
	TraitValue  *int             `gorm:"column:trait_value"`
	Cost        int              `gorm:"column:cost;not null;check:chk_spend_requests_cost_positive,cost > 0"`
	State       enums.SpendState `gorm:"column:state;type:spend_state_enum;not null;default:pending"`
	Refunded    bool             `gorm:"column:refunded;not null;default:false"`
	CreatedAt   time.Time        `gorm:"column:created_at;index:idx_spend_requests_character_created,priority:2"`
	ResolvedAt  *time.Time       `gorm:"column:resolved_at"`
	ResolvedBy  *string          `gorm:"column:resolved_by"`
}

func (r *SpendRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.State == "" {
		r.State = enums.SpendStatePending
	}
	return nil
}
