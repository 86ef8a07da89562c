package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds a FOR UPDATE row lock to the next query on tx. Dialects
// without row locks (sqlite) ignore the clause.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

// IsPostgres reports whether tx talks to Postgres.
func IsPostgres(tx *gorm.DB) bool {
	return tx != nil && tx.Dialector != nil && tx.Dialector.Name() == DriverPostgres
}

// SetLocalLockTimeout bounds how long row locks taken later in tx may wait.
// It is a no-op for dialects without lock_timeout.
func SetLocalLockTimeout(tx *gorm.DB, timeout time.Duration) error {
	if !IsPostgres(tx) || timeout <= 0 {
		return nil
	}
	ms := timeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)).Error
}
