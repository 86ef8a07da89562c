package enums

import "fmt"

// AwardEventKind maps to the award_event_kind_enum type in Postgres.
type AwardEventKind string

const (
	AwardEventKindScene AwardEventKind = "scene"
	AwardEventKindStory AwardEventKind = "story"
)

var validAwardEventKinds = []AwardEventKind{
	AwardEventKindScene,
	AwardEventKindStory,
}

// IsValid reports whether the value matches the canonical award_event_kind_enum.
func (a AwardEventKind) IsValid() bool {
	for _, candidate := range validAwardEventKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAwardEventKind converts raw input into AwardEventKind.
func ParseAwardEventKind(value string) (AwardEventKind, error) {
	for _, candidate := range validAwardEventKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid award event kind %q", value)
}
