package enums

import "fmt"

// TraitType maps to the trait_type_enum type in Postgres.
type TraitType string

const (
	TraitTypeAttribute  TraitType = "attribute"
	TraitTypeAbility    TraitType = "ability"
	TraitTypeBackground TraitType = "background"
	TraitTypeDiscipline TraitType = "discipline"
	TraitTypeWillpower  TraitType = "willpower"
)

var validTraitTypes = []TraitType{
	TraitTypeAttribute,
	TraitTypeAbility,
	TraitTypeBackground,
	TraitTypeDiscipline,
	TraitTypeWillpower,
}

// IsValid reports whether the value matches the canonical trait_type_enum.
func (t TraitType) IsValid() bool {
	for _, candidate := range validTraitTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTraitType converts raw input into TraitType.
func ParseTraitType(value string) (TraitType, error) {
	for _, candidate := range validTraitTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid trait type %q", value)
}
