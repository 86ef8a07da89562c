package ledger

import (
	"context"
	"errors"

	dbpkg "github.com/angelmondragon/chronicle/pkg/db"
	pkgerrors "github.com/angelmondragon/chronicle/pkg/errors"
	"github.com/angelmondragon/chronicle/pkg/locks"
)

// Sentinel kinds returned by the engine. Errors match with errors.Is by code,
// so a returned error carrying its own message and details still matches.
var (
	ErrInsufficientBalance = pkgerrors.New(pkgerrors.CodeInsufficientBalance, "insufficient xp")
	ErrAlreadyProcessed    = pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "spend request has already been processed")
	ErrAlreadyApproved     = pkgerrors.New(pkgerrors.CodeAlreadyApproved, "weekly award request has already been resolved")
	ErrAlreadyAwarded      = pkgerrors.New(pkgerrors.CodeAlreadyAwarded, "xp has already been awarded for this event")
	ErrInvalidRequest      = pkgerrors.New(pkgerrors.CodeNotFound, "invalid request")
	ErrValidationFailed    = pkgerrors.New(pkgerrors.CodeValidation, "validation failed")
	ErrLockTimeout         = pkgerrors.New(pkgerrors.CodeLockTimeout, "timed out waiting for a ledger lock")
	ErrCharacterInactive   = pkgerrors.New(pkgerrors.CodeStateConflict, "character status does not allow this operation")
	ErrConflict            = pkgerrors.New(pkgerrors.CodeConflict, "conflict detected")
)

// normalize maps lock and storage failures onto the ledger's error kinds.
// Typed errors pass through untouched.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, locks.ErrTimeout) || dbpkg.IsLockTimeout(err) {
		return pkgerrors.Wrap(pkgerrors.CodeLockTimeout, err, "timed out waiting for a ledger lock")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ledger operation canceled")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ledger storage failure")
}

// unexpected reports whether err is outside the ledger's business outcomes.
func unexpected(err error) bool {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeInternal, pkgerrors.CodeDependency:
		return true
	}
	return false
}
