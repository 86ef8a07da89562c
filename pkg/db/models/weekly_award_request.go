package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chronicle/pkg/enums"
)

// WeeklyAwardRequest is a per-character, per-week XP claim split by category.
// Each true category carries the reference to the activity that earned it.
type WeeklyAwardRequest struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CharacterID  uuid.UUID         `gorm:"column:character_id;type:uuid;not null;uniqueIndex:ux_weekly_award_requests_character_period,priority:1"`
	PeriodStart  time.Time         `gorm:"column:period_start;not null;uniqueIndex:ux_weekly_award_requests_character_period,priority:2"`
	Finishing    bool              `gorm:"column:finishing;not null;default:false"`
	FinishingRef *string           `gorm:"column:finishing_ref"`
	Learning     bool              `gorm:"column:learning;not null;default:false"`
	LearningRef  *string           `gorm:"column:learning_ref"`
	RP           bool              `gorm:"column:rp;not null;default:false"`
	RPRef        *string           `gorm:"column:rp_ref"`
	Focus        bool              `gorm:"column:focus;not null;default:false"`
	FocusRef     *string           `gorm:"column:focus_ref"`
	Standout     bool              `gorm:"column:standout;not null;default:false"`
	StandoutRef  *string           `gorm:"column:standout_ref"`
	State        enums.WeeklyState `gorm:"column:state;type:weekly_state_enum;not null;default:pending"`
	XPGranted    int               `gorm:"column:xp_granted;not null;default:0"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	ResolvedAt   *time.Time        `gorm:"column:resolved_at"`
	ResolvedBy   *string           `gorm:"column:resolved_by"`
}

func (r *WeeklyAwardRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.State == "" {
		r.State = enums.WeeklyStatePending
	}
	return nil
}
