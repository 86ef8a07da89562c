package enums

import "fmt"

// SpendState maps to the spend_state_enum type in Postgres.
type SpendState string

const (
	SpendStatePending  SpendState = "pending"
	SpendStateApproved SpendState = "approved"
	SpendStateDenied   SpendState = "denied"
)

var validSpendStates = []SpendState{
	SpendStatePending,
	SpendStateApproved,
	SpendStateDenied,
}

// IsValid reports whether the value matches the canonical spend_state_enum.
func (s SpendState) IsValid() bool {
	for _, candidate := range validSpendStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSpendState converts raw input into SpendState.
func ParseSpendState(value string) (SpendState, error) {
	for _, candidate := range validSpendStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid spend state %q", value)
}
