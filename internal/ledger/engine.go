// Package ledger owns every write to a character's XP balance: spends and
// their resolution, group awards and weekly awards. Each mutation is one
// transaction that takes its locks in a fixed order (request or event first,
// then characters by ascending id) before touching rows.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chronicle/internal/awards"
	"github.com/angelmondragon/chronicle/internal/characters"
	"github.com/angelmondragon/chronicle/internal/spends"
	"github.com/angelmondragon/chronicle/pkg/config"
	dbpkg "github.com/angelmondragon/chronicle/pkg/db"
	pkgerrors "github.com/angelmondragon/chronicle/pkg/errors"
	"github.com/angelmondragon/chronicle/pkg/locks"
	"github.com/angelmondragon/chronicle/pkg/logger"
	"github.com/angelmondragon/chronicle/pkg/metrics"
	"github.com/angelmondragon/chronicle/pkg/outbox"
)

// DenialPolicy decides what happens to the XP reserved by a denied spend.
type DenialPolicy string

const (
	// DenialForfeit keeps the reserved XP debited.
	DenialForfeit DenialPolicy = DenialPolicy(config.DenialPolicyForfeit)
	// DenialRefund credits the reserved XP back to the character.
	DenialRefund DenialPolicy = DenialPolicy(config.DenialPolicyRefund)
)

// ParseDenialPolicy converts raw config into a DenialPolicy. Empty means forfeit.
func ParseDenialPolicy(value string) (DenialPolicy, error) {
	switch DenialPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", DenialForfeit:
		return DenialForfeit, nil
	case DenialRefund:
		return DenialRefund, nil
	}
	return "", fmt.Errorf("invalid denial policy %q", value)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Params wires the engine's collaborators.
type Params struct {
	DB           txRunner
	Characters   characters.Repository
	Spends       spends.Repository
	Awards       awards.Repository
	Outbox       outboxEmitter
	Locker       locks.Locker
	Logger       *logger.Logger
	Metrics      *metrics.LedgerMetrics
	DenialPolicy DenialPolicy
	// LockTimeout bounds row lock waits on Postgres.
	LockTimeout time.Duration
	Now         func() time.Time
}

// Engine runs the ledger operations.
type Engine struct {
	db           txRunner
	characters   characters.Repository
	spends       spends.Repository
	awards       awards.Repository
	outbox       outboxEmitter
	locker       locks.Locker
	logg         *logger.Logger
	metrics      *metrics.LedgerMetrics
	denialPolicy DenialPolicy
	lockTimeout  time.Duration
	now          func() time.Time
}

// NewEngine validates params and builds an engine.
func NewEngine(p Params) (*Engine, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Characters == nil {
		return nil, fmt.Errorf("characters repository required")
	}
	if p.Spends == nil {
		return nil, fmt.Errorf("spends repository required")
	}
	if p.Awards == nil {
		return nil, fmt.Errorf("awards repository required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if p.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	policy, err := ParseDenialPolicy(string(p.DenialPolicy))
	if err != nil {
		return nil, err
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		db:           p.DB,
		characters:   p.Characters,
		spends:       p.Spends,
		awards:       p.Awards,
		outbox:       p.Outbox,
		locker:       p.Locker,
		logg:         p.Logger,
		metrics:      p.Metrics,
		denialPolicy: policy,
		lockTimeout:  p.LockTimeout,
		now:          now,
	}, nil
}

// DenialPolicy reports the policy the engine applies to denied spends.
func (e *Engine) DenialPolicy() DenialPolicy {
	return e.denialPolicy
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// mutate runs fn in one transaction. Locks taken through the heldLocks handle
// are released only after the transaction has committed or rolled back.
func (e *Engine) mutate(ctx context.Context, fn func(tx *gorm.DB, held *heldLocks) error) error {
	held := &heldLocks{}
	defer held.release()
	err := e.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := dbpkg.SetLocalLockTimeout(tx, e.lockTimeout); err != nil {
			return err
		}
		return fn(tx, held)
	})
	return normalize(err)
}

type heldLocks struct {
	releases []locks.Release
}

func (h *heldLocks) release() {
	for i := len(h.releases) - 1; i >= 0; i-- {
		h.releases[i]()
	}
	h.releases = nil
}

// acquire takes keys in the order given and keeps them until the transaction ends.
func (e *Engine) acquire(ctx context.Context, held *heldLocks, keys ...string) error {
	started := time.Now()
	release, err := locks.AcquireAll(ctx, e.locker, keys...)
	e.metrics.ObserveLockWait(time.Since(started))
	if err != nil {
		return err
	}
	held.releases = append(held.releases, release)
	return nil
}

func spendKey(id uuid.UUID) string     { return locks.Key("spend", id.String()) }
func eventKey(id uuid.UUID) string     { return locks.Key("award_event", id.String()) }
func weeklyKey(id uuid.UUID) string    { return locks.Key("weekly", id.String()) }
func characterKey(id uuid.UUID) string { return locks.Key("character", id.String()) }

// sortedIDs returns ids in the global character lock order.
func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	out := append([]uuid.UUID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func characterKeys(ids []uuid.UUID) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = characterKey(id)
	}
	return keys
}

// finish records metrics and logs the outcome of one operation.
func (e *Engine) finish(ctx context.Context, op string, started time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case unexpected(err):
		outcome = metrics.OutcomeError
	default:
		outcome = metrics.OutcomeRejected
	}
	e.metrics.Observe(op, outcome, time.Since(started))

	if e.logg == nil {
		return
	}
	ctx = e.logg.WithFields(ctx, map[string]any{
		"ledger_op":   op,
		"duration_ms": time.Since(started).Milliseconds(),
		"outcome":     outcome,
	})
	switch outcome {
	case metrics.OutcomeSuccess:
		e.logg.Info(ctx, "ledger operation completed")
	case metrics.OutcomeRejected:
		e.logg.Info(e.logg.WithField(ctx, "error_code", pkgerrors.CodeOf(err)), "ledger operation rejected")
	default:
		e.logg.Error(e.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "ledger operation failed", err)
	}
}

func (e *Engine) withCharacter(ctx context.Context, id uuid.UUID) context.Context {
	if e.logg == nil {
		return ctx
	}
	return e.logg.WithCharacterID(ctx, id.String())
}

func (e *Engine) withActor(ctx context.Context, actor string) context.Context {
	if e.logg == nil || actor == "" {
		return ctx
	}
	return e.logg.WithActor(ctx, actor)
}

func requireActor(field, actor string) error {
	if strings.TrimSpace(actor) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, field+" is required").
			WithDetails(map[string]string{field: "is required"})
	}
	return nil
}

func requireID(field string, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, field+" is required").
			WithDetails(map[string]string{field: "is required"})
	}
	return nil
}
