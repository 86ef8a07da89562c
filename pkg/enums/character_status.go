package enums

import "fmt"

// CharacterStatus maps to the character_status_enum type in Postgres.
type CharacterStatus string

const (
	CharacterStatusActive   CharacterStatus = "active"
	CharacterStatusRetired  CharacterStatus = "retired"
	CharacterStatusDeceased CharacterStatus = "deceased"
)

var validCharacterStatuses = []CharacterStatus{
	CharacterStatusActive,
	CharacterStatusRetired,
	CharacterStatusDeceased,
}

// IsValid reports whether the value matches the canonical character_status_enum.
func (c CharacterStatus) IsValid() bool {
	for _, candidate := range validCharacterStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCharacterStatus converts raw input into CharacterStatus.
func ParseCharacterStatus(value string) (CharacterStatus, error) {
	for _, candidate := range validCharacterStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid character status %q", value)
}

// CanSpend reports whether a character in this status may reserve XP.
func (c CharacterStatus) CanSpend() bool {
	return c == CharacterStatusActive
}

// CanReceive reports whether a character in this status may be credited XP.
func (c CharacterStatus) CanReceive() bool {
	return c == CharacterStatusActive || c == CharacterStatusRetired
}
