package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chronicle/pkg/enums"
)

// Character owns an XP balance. XP is only written by the ledger engine.
type Character struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Name      string                `gorm:"column:name;not null"`
	XP        int                   `gorm:"column:xp;not null;default:0;check:chk_characters_xp_non_negative,xp >= 0"`
	Status    enums.CharacterStatus `gorm:"column:status;type:character_status_enum;not null;default:active"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Character) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = enums.CharacterStatusActive
	}
	return nil
}

// CharacterTrait is a single rated entry on a character sheet.
type CharacterTrait struct {
	CharacterID uuid.UUID       `gorm:"column:character_id;type:uuid;primaryKey"`
	TraitType   enums.TraitType `gorm:"column:trait_type;type:trait_type_enum;primaryKey"`
	TraitName   string          `gorm:"column:trait_name;primaryKey"`
	Value       int             `gorm:"column:value;not null"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
