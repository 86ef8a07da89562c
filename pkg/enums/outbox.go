package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateSpendRequest  OutboxAggregateType = "spend_request"
	AggregateAwardEvent    OutboxAggregateType = "award_event"
	AggregateWeeklyRequest OutboxAggregateType = "weekly_award_request"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateSpendRequest,
	AggregateAwardEvent,
	AggregateWeeklyRequest,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventXPSpendRequested OutboxEventType = "xp_spend_requested"
	EventXPSpendApproved  OutboxEventType = "xp_spend_approved"
	EventXPSpendDenied    OutboxEventType = "xp_spend_denied"
	EventXPGroupAwarded   OutboxEventType = "xp_group_awarded"
	EventXPWeeklyApproved OutboxEventType = "xp_weekly_approved"
	EventXPWeeklyDenied   OutboxEventType = "xp_weekly_denied"
)

var validOutboxEventTypes = []OutboxEventType{
	EventXPSpendRequested,
	EventXPSpendApproved,
	EventXPSpendDenied,
	EventXPGroupAwarded,
	EventXPWeeklyApproved,
	EventXPWeeklyDenied,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
