package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/chronicle/pkg/logger"
)

const (
	outboxRetentionJobName = "outbox_retention"
	defaultOutboxRetention = 30 * 24 * time.Hour
	outboxMinAttempts      = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

// OutboxRetentionJobParams configure the outbox purge. MinAttempts should
// match the publisher's max attempts so exhausted rows are purged too.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxPurger
	Retention   time.Duration
	MinAttempts int
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxPurger
	retention   time.Duration
	minAttempts int
	now         func() time.Time
}

// NewOutboxRetentionJob purges ledger events older than Retention that were
// published or ran out of publish attempts.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Repository == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		retention:   params.Retention,
		minAttempts: params.MinAttempts,
		now:         time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.minAttempts <= 0 {
		job.minAttempts = outboxMinAttempts
	}
	return job, nil
}

func (j *outboxRetentionJob) Name() string { return outboxRetentionJobName }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		deleted, err = j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.minAttempts)
		return err
	})
	if err != nil {
		return fmt.Errorf("purge outbox before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"min_attempts": j.minAttempts,
		"rows_deleted": deleted,
	}), "outbox retention cleanup complete")
	return nil
}
