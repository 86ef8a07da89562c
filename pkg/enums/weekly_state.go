package enums

import "fmt"

// WeeklyState maps to the weekly_state_enum type in Postgres.
type WeeklyState string

const (
	WeeklyStatePending  WeeklyState = "pending"
	WeeklyStateApproved WeeklyState = "approved"
	WeeklyStateDenied   WeeklyState = "denied"
)

var validWeeklyStates = []WeeklyState{
	WeeklyStatePending,
	WeeklyStateApproved,
	WeeklyStateDenied,
}

// IsValid reports whether the value matches the canonical weekly_state_enum.
func (w WeeklyState) IsValid() bool {
	for _, candidate := range validWeeklyStates {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWeeklyState converts raw input into WeeklyState.
func ParseWeeklyState(value string) (WeeklyState, error) {
	for _, candidate := range validWeeklyStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid weekly award state %q", value)
}
