package awards

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/chronicle/pkg/db"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
	pkgerrors "github.com/angelmondragon/chronicle/pkg/errors"
)

var (
	// ErrEventNotFound is returned when an award event id does not exist.
	ErrEventNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "award event not found")
	// ErrWeeklyNotFound is returned when a weekly award request id does not exist.
	ErrWeeklyNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "weekly award request not found")
	// ErrAlreadyAwarded is returned when an event's award flag is already set.
	ErrAlreadyAwarded = pkgerrors.New(pkgerrors.CodeAlreadyAwarded, "xp has already been awarded for this event")
	// ErrAlreadyResolved is returned when a weekly request is no longer pending.
	ErrAlreadyResolved = pkgerrors.New(pkgerrors.CodeAlreadyApproved, "weekly award request has already been resolved")
	// ErrDuplicateWeekly is returned when a character already has a request for the week.
	ErrDuplicateWeekly = pkgerrors.New(pkgerrors.CodeConflict, "weekly award already requested for this period")
)

// Repository persists award events, their member snapshots and weekly requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateEvent(ctx context.Context, event *models.AwardEvent, members []uuid.UUID) error
	FindEvent(ctx context.Context, id uuid.UUID) (*models.AwardEvent, error)
	LockEventForUpdate(ctx context.Context, id uuid.UUID) (*models.AwardEvent, error)
	Members(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
	MarkAwarded(ctx context.Context, id uuid.UUID, awardedBy string, at time.Time) error

	CreateWeekly(ctx context.Context, request *models.WeeklyAwardRequest) error
	FindWeekly(ctx context.Context, id uuid.UUID) (*models.WeeklyAwardRequest, error)
	LockWeeklyForUpdate(ctx context.Context, id uuid.UUID) (*models.WeeklyAwardRequest, error)
	SaveWeeklyResolution(ctx context.Context, request *models.WeeklyAwardRequest) error
	ListPendingWeeklyBefore(ctx context.Context, periodBefore time.Time, limit int) ([]models.WeeklyAwardRequest, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an award repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateEvent inserts the event and its member snapshot. Callers wanting both
// rows atomically pass a transaction through WithTx.
func (r *repository) CreateEvent(ctx context.Context, event *models.AwardEvent, members []uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(event).Error; err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}
	rows := make([]models.AwardEventMember, 0, len(members))
	seen := make(map[uuid.UUID]struct{}, len(members))
	for _, id := range members {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, models.AwardEventMember{EventID: event.ID, CharacterID: id})
	}
	return db.Create(&rows).Error
}

func (r *repository) FindEvent(ctx context.Context, id uuid.UUID) (*models.AwardEvent, error) {
	var event models.AwardEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, notFound(err, ErrEventNotFound)
	}
	return &event, nil
}

func (r *repository) LockEventForUpdate(ctx context.Context, id uuid.UUID) (*models.AwardEvent, error) {
	var event models.AwardEvent
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, notFound(err, ErrEventNotFound)
	}
	return &event, nil
}

// Members returns the event's member ids in ascending order.
func (r *repository) Members(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	var rows []models.AwardEventMember
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.CharacterID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// MarkAwarded flips the event's award flag. It only succeeds once.
func (r *repository) MarkAwarded(ctx context.Context, id uuid.UUID, awardedBy string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.AwardEvent{}).
		Where("id = ? AND awarded = ?", id, false).
		Updates(map[string]any{
			"awarded":    true,
			"awarded_at": at,
			"awarded_by": awardedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyAwarded
	}
	return nil
}

func (r *repository) CreateWeekly(ctx context.Context, request *models.WeeklyAwardRequest) error {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return ErrDuplicateWeekly
		}
		return err
	}
	return nil
}

func (r *repository) FindWeekly(ctx context.Context, id uuid.UUID) (*models.WeeklyAwardRequest, error) {
	var request models.WeeklyAwardRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, notFound(err, ErrWeeklyNotFound)
	}
	return &request, nil
}

func (r *repository) LockWeeklyForUpdate(ctx context.Context, id uuid.UUID) (*models.WeeklyAwardRequest, error) {
	var request models.WeeklyAwardRequest
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, notFound(err, ErrWeeklyNotFound)
	}
	return &request, nil
}

// SaveWeeklyResolution writes categories and the terminal state, guarded on
// state = pending.
func (r *repository) SaveWeeklyResolution(ctx context.Context, request *models.WeeklyAwardRequest) error {
	res := r.db.WithContext(ctx).
		Model(&models.WeeklyAwardRequest{}).
		Where("id = ? AND state = ?", request.ID, enums.WeeklyStatePending).
		Updates(map[string]any{
			"finishing":     request.Finishing,
			"finishing_ref": request.FinishingRef,
			"learning":      request.Learning,
			"learning_ref":  request.LearningRef,
			"rp":            request.RP,
			"rp_ref":        request.RPRef,
			"focus":         request.Focus,
			"focus_ref":     request.FocusRef,
			"standout":      request.Standout,
			"standout_ref":  request.StandoutRef,
			"state":         request.State,
			"xp_granted":    request.XPGranted,
			"resolved_at":   request.ResolvedAt,
			"resolved_by":   request.ResolvedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

// ListPendingWeeklyBefore returns pending requests whose week started before
// periodBefore, oldest first.
func (r *repository) ListPendingWeeklyBefore(ctx context.Context, periodBefore time.Time, limit int) ([]models.WeeklyAwardRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.WeeklyAwardRequest
	if err := r.db.WithContext(ctx).
		Where("state = ? AND period_start < ?", enums.WeeklyStatePending, periodBefore.UTC()).
		Order("period_start ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
