package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chronicle/pkg/enums"
)

// AwardEvent is a finished scene or story whose members may be awarded once.
type AwardEvent struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Kind      enums.AwardEventKind `gorm:"column:kind;type:award_event_kind_enum;not null"`
	Title     string               `gorm:"column:title;not null"`
	Success   bool                 `gorm:"column:success;not null;default:false"`
	Danger    bool                 `gorm:"column:danger;not null;default:false"`
	Growth    bool                 `gorm:"column:growth;not null;default:false"`
	Drama     bool                 `gorm:"column:drama;not null;default:false"`
	Duration  bool                 `gorm:"column:duration;not null;default:false"`
	Awarded   bool                 `gorm:"column:awarded;not null;default:false"`
	AwardedAt *time.Time           `gorm:"column:awarded_at"`
	AwardedBy *string              `gorm:"column:awarded_by"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (e *AwardEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// AwardEventMember snapshots a character taking part in an award event.
type AwardEventMember struct {
	EventID     uuid.UUID `gorm:"column:event_id;type:uuid;primaryKey"`
	CharacterID uuid.UUID `gorm:"column:character_id;type:uuid;primaryKey"`
}
