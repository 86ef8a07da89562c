package models

// All lists every table the ledger owns, parents before children. It backs
// sqlite AutoMigrate in tests and local dev; Postgres uses the goose files.
func All() []any {
	return []any{
		&Character{},
		&CharacterTrait{},
		&SpendRequest{},
		&AwardEvent{},
		&AwardEventMember{},
		&WeeklyAwardRequest{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
