package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/chronicle/internal/awards"
	"github.com/angelmondragon/chronicle/internal/ledger"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/logger"
)

// fakeWeeklyLedger keeps requests pending until they are approved or denied,
// and lists them oldest first up to the limit.
type fakeWeeklyLedger struct {
	pending     []models.WeeklyAwardRequest
	listErr     error
	results     map[uuid.UUID]error
	denyResults map[uuid.UUID]error
	cutoff      time.Time
	limit       int
	approvers   []string
	approved    []uuid.UUID
	denied      []uuid.UUID
}

func (f *fakeWeeklyLedger) PendingWeeklyBefore(_ context.Context, cutoff time.Time, limit int) ([]models.WeeklyAwardRequest, error) {
	f.cutoff = cutoff
	f.limit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := f.pending
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]models.WeeklyAwardRequest(nil), out...), nil
}

func (f *fakeWeeklyLedger) ApproveWeekly(_ context.Context, id uuid.UUID, overrides *awards.WeeklyCategories, approver string) (int, error) {
	f.approvers = append(f.approvers, approver)
	if err := f.results[id]; err != nil {
		return 0, err
	}
	f.approved = append(f.approved, id)
	f.resolve(id)
	return 2, nil
}

func (f *fakeWeeklyLedger) DenyWeekly(_ context.Context, id uuid.UUID, approver string) (*models.WeeklyAwardRequest, error) {
	f.approvers = append(f.approvers, approver)
	if err := f.denyResults[id]; err != nil {
		return nil, err
	}
	f.denied = append(f.denied, id)
	f.resolve(id)
	return &models.WeeklyAwardRequest{ID: id}, nil
}

func (f *fakeWeeklyLedger) resolve(id uuid.UUID) {
	for i, request := range f.pending {
		if request.ID == id {
			f.pending = append(f.pending[:i:i], f.pending[i+1:]...)
			return
		}
	}
}

func newWeeklyAwardJob(t *testing.T, fake *fakeWeeklyLedger, now time.Time) *weeklyAwardJob {
	t.Helper()
	job, err := NewWeeklyAwardJob(WeeklyAwardJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Ledger: fake,
		Grace:  48 * time.Hour,
	})
	require.NoError(t, err)
	weekly := job.(*weeklyAwardJob)
	weekly.now = func() time.Time { return now }
	return weekly
}

func TestWeeklyAwardJobApprovesClosedWeeks(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	a, b := uuid.New(), uuid.New()
	fake := &fakeWeeklyLedger{pending: []models.WeeklyAwardRequest{{ID: a}, {ID: b}}}
	job := newWeeklyAwardJob(t, fake, now)

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, now.Add(-9*24*time.Hour), fake.cutoff)
	require.Equal(t, defaultWeeklyBatchSize, fake.limit)
	require.Equal(t, []uuid.UUID{a, b}, fake.approved)
	require.Equal(t, []string{defaultWeeklyApproverID, defaultWeeklyApproverID}, fake.approvers)
}

func TestWeeklyAwardJobSkipsResolvedAndAggregatesFailures(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	resolved, broken, inactive, ok := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	fake := &fakeWeeklyLedger{
		pending: []models.WeeklyAwardRequest{{ID: resolved}, {ID: broken}, {ID: inactive}, {ID: ok}},
		results: map[uuid.UUID]error{
			resolved: ledger.ErrAlreadyApproved,
			broken:   errors.New("connection reset"),
			inactive: ledger.ErrCharacterInactive,
		},
	}
	job := newWeeklyAwardJob(t, fake, now)

	err := job.Run(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 1)
	require.NotErrorIs(t, err, ledger.ErrCharacterInactive)
	require.Equal(t, []uuid.UUID{ok}, fake.approved)
	require.Equal(t, []uuid.UUID{inactive}, fake.denied)
}

func TestWeeklyAwardJobInactiveRequestsDoNotStarveBatch(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	var pending []models.WeeklyAwardRequest
	results := make(map[uuid.UUID]error)
	for i := 0; i < 3; i++ {
		id := uuid.New()
		pending = append(pending, models.WeeklyAwardRequest{ID: id})
		results[id] = ledger.ErrCharacterInactive
	}
	fresh := []uuid.UUID{uuid.New(), uuid.New()}
	for _, id := range fresh {
		pending = append(pending, models.WeeklyAwardRequest{ID: id})
	}
	fake := &fakeWeeklyLedger{pending: pending, results: results}
	job := newWeeklyAwardJob(t, fake, now)
	job.batch = 3

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, fake.denied, 3)
	require.Empty(t, fake.approved)

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, fresh, fake.approved)
	require.Empty(t, fake.pending)
}

func TestWeeklyAwardJobDenyFailureIsReported(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	raced, broken := uuid.New(), uuid.New()
	fake := &fakeWeeklyLedger{
		pending: []models.WeeklyAwardRequest{{ID: raced}, {ID: broken}},
		results: map[uuid.UUID]error{
			raced:  ledger.ErrCharacterInactive,
			broken: ledger.ErrCharacterInactive,
		},
		denyResults: map[uuid.UUID]error{
			raced:  ledger.ErrAlreadyApproved,
			broken: errors.New("connection reset"),
		},
	}
	job := newWeeklyAwardJob(t, fake, now)

	err := job.Run(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 1)
	require.Empty(t, fake.denied)
	require.Len(t, fake.pending, 2)
}

func TestWeeklyAwardJobListFailure(t *testing.T) {
	fake := &fakeWeeklyLedger{listErr: errors.New("db down")}
	job := newWeeklyAwardJob(t, fake, time.Now())
	require.Error(t, job.Run(context.Background()))
	require.Empty(t, fake.approvers)
}

func TestNewWeeklyAwardJobRequiresDependencies(t *testing.T) {
	_, err := NewWeeklyAwardJob(WeeklyAwardJobParams{Ledger: &fakeWeeklyLedger{}})
	require.Error(t, err)
	_, err = NewWeeklyAwardJob(WeeklyAwardJobParams{Logger: logger.New(logger.Options{Output: io.Discard})})
	require.Error(t, err)
}

var _ weeklyApprover = (*ledger.Engine)(nil)
