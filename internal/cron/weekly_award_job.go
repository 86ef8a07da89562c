package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/chronicle/internal/awards"
	"github.com/angelmondragon/chronicle/internal/ledger"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/logger"
)

const (
	weeklyAwardJobName      = "weekly_award_auto_approve"
	defaultWeeklyGrace      = 72 * time.Hour
	defaultWeeklyBatchSize  = 200
	defaultWeeklyApproverID = "system:weekly-award"
)

type weeklyApprover interface {
	PendingWeeklyBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.WeeklyAwardRequest, error)
	ApproveWeekly(ctx context.Context, id uuid.UUID, overrides *awards.WeeklyCategories, approver string) (int, error)
	DenyWeekly(ctx context.Context, id uuid.UUID, approver string) (*models.WeeklyAwardRequest, error)
}

type WeeklyAwardJobParams struct {
	Logger    *logger.Logger
	Ledger    weeklyApprover
	Grace     time.Duration
	BatchSize int
	Approver  string
}

// NewWeeklyAwardJob approves pending weekly requests once their week plus the
// grace period has passed. Requests whose character can no longer receive XP
// are denied so they leave the pending queue instead of filling every batch.
func NewWeeklyAwardJob(params WeeklyAwardJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultWeeklyGrace
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultWeeklyBatchSize
	}
	approver := params.Approver
	if approver == "" {
		approver = defaultWeeklyApproverID
	}
	return &weeklyAwardJob{
		logg:     params.Logger,
		ledger:   params.Ledger,
		grace:    grace,
		batch:    batch,
		approver: approver,
		now:      time.Now,
	}, nil
}

type weeklyAwardJob struct {
	logg     *logger.Logger
	ledger   weeklyApprover
	grace    time.Duration
	batch    int
	approver string
	now      func() time.Time
}

func (j *weeklyAwardJob) Name() string { return weeklyAwardJobName }

func (j *weeklyAwardJob) Run(ctx context.Context) error {
	// a week is closed once period_start + 7d + grace is in the past
	cutoff := j.now().UTC().Add(-7*24*time.Hour - j.grace)
	pending, err := j.ledger.PendingWeeklyBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list pending weekly awards: %w", err)
	}

	var (
		errs     error
		approved int
		denied   int
		skipped  int
		granted  int
	)
	for _, request := range pending {
		xp, err := j.ledger.ApproveWeekly(ctx, request.ID, nil, j.approver)
		switch {
		case err == nil:
			approved++
			granted += xp
		case errors.Is(err, ledger.ErrAlreadyApproved):
			skipped++
		case errors.Is(err, ledger.ErrCharacterInactive):
			switch derr := j.deny(ctx, request); {
			case derr == nil:
				denied++
			case errors.Is(derr, ledger.ErrAlreadyApproved):
				skipped++
			default:
				errs = multierr.Append(errs, fmt.Errorf("deny weekly request %s: %w", request.ID, derr))
			}
		default:
			errs = multierr.Append(errs, fmt.Errorf("weekly request %s: %w", request.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(pending),
		"approved":   approved,
		"denied":     denied,
		"skipped":    skipped,
		"failed":     len(multierr.Errors(errs)),
		"xp_granted": granted,
	})
	j.logg.Info(logCtx, "weekly award auto-approve complete")
	return errs
}

func (j *weeklyAwardJob) deny(ctx context.Context, request models.WeeklyAwardRequest) error {
	ctx = j.logg.WithFields(ctx, map[string]any{
		"weekly_request_id": request.ID.String(),
		"character_id":      request.CharacterID.String(),
	})
	if _, err := j.ledger.DenyWeekly(ctx, request.ID, j.approver); err != nil {
		return err
	}
	j.logg.Warn(ctx, "weekly award denied, character can no longer receive xp")
	return nil
}
