package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/chronicle/pkg/enums"
)

// XPSpendRequestedEvent is emitted when a spend reserves XP from a character.
type XPSpendRequestedEvent struct {
	SpendRequestID uuid.UUID       `json:"spend_request_id"`
	CharacterID    uuid.UUID       `json:"character_id"`
	TraitType      enums.TraitType `json:"trait_type"`
	TraitName      string          `json:"trait_name"`
	Cost           int             `json:"cost"`
	BalanceAfter   int             `json:"balance_after"`
}

// XPSpendApprovedEvent is emitted when a storyteller approves a spend and the
// trait sheet is written.
type XPSpendApprovedEvent struct {
	SpendRequestID uuid.UUID       `json:"spend_request_id"`
	CharacterID    uuid.UUID       `json:"character_id"`
	TraitType      enums.TraitType `json:"trait_type"`
	TraitName      string          `json:"trait_name"`
	TraitValue     int             `json:"trait_value"`
	ApprovedBy     string          `json:"approved_by"`
	ApprovedAt     time.Time       `json:"approved_at"`
}

// XPSpendDeniedEvent is emitted when a spend is denied. Refunded reports
// whether the reserved cost went back to the character.
type XPSpendDeniedEvent struct {
	SpendRequestID uuid.UUID `json:"spend_request_id"`
	CharacterID    uuid.UUID `json:"character_id"`
	Cost           int       `json:"cost"`
	Refunded       bool      `json:"refunded"`
	DeniedBy       string    `json:"denied_by"`
	DeniedAt       time.Time `json:"denied_at"`
}

// XPGroupAwardedEvent is emitted once per award event.
type XPGroupAwardedEvent struct {
	EventID      uuid.UUID            `json:"event_id"`
	Kind         enums.AwardEventKind `json:"kind"`
	Amount       int                  `json:"amount"`
	CharacterIDs []uuid.UUID          `json:"character_ids"`
	AwardedBy    string               `json:"awarded_by"`
	AwardedAt    time.Time            `json:"awarded_at"`
}

// XPWeeklyApprovedEvent is emitted when a weekly award is granted.
type XPWeeklyApprovedEvent struct {
	WeeklyRequestID uuid.UUID `json:"weekly_request_id"`
	CharacterID     uuid.UUID `json:"character_id"`
	PeriodStart     string    `json:"period_start"`
	XPGranted       int       `json:"xp_granted"`
	Categories      []string  `json:"categories"`
	ApprovedBy      string    `json:"approved_by"`
	ApprovedAt      time.Time `json:"approved_at"`
}

// XPWeeklyDeniedEvent is emitted when a weekly award is denied.
type XPWeeklyDeniedEvent struct {
	WeeklyRequestID uuid.UUID `json:"weekly_request_id"`
	CharacterID     uuid.UUID `json:"character_id"`
	PeriodStart     string    `json:"period_start"`
	DeniedBy        string    `json:"denied_by"`
	DeniedAt        time.Time `json:"denied_at"`
}
