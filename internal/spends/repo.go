package spends

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/chronicle/pkg/db"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
	pkgerrors "github.com/angelmondragon/chronicle/pkg/errors"
	"github.com/angelmondragon/chronicle/pkg/pagination"
)

var (
	// ErrNotFound is returned when a spend request id does not exist.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "spend request not found")
	// ErrAlreadyProcessed is returned when a resolution targets a request
	// that is no longer pending.
	ErrAlreadyProcessed = pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "spend request has already been processed")
)

// Page is one slice of a character's spend history, newest first.
type Page struct {
	Items      []models.SpendRequest
	NextCursor string
}

// Repository persists spend requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.SpendRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.SpendRequest, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (*models.SpendRequest, error)
	SaveResolution(ctx context.Context, request *models.SpendRequest) error
	History(ctx context.Context, characterID uuid.UUID, params pagination.Params) (*Page, error)
	Pending(ctx context.Context, characterID uuid.UUID) ([]models.SpendRequest, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a spend request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.SpendRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SpendRequest, error) {
	var request models.SpendRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, notFound(err)
	}
	return &request, nil
}

func (r *repository) LockForUpdate(ctx context.Context, id uuid.UUID) (*models.SpendRequest, error) {
	var request models.SpendRequest
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, notFound(err)
	}
	return &request, nil
}

// SaveResolution writes the terminal state of a request. The write is guarded
// on state = pending so a second resolution can never overwrite the first.
func (r *repository) SaveResolution(ctx context.Context, request *models.SpendRequest) error {
	if request.State != enums.SpendStateApproved && request.State != enums.SpendStateDenied {
		return fmt.Errorf("invalid resolution state %q", request.State)
	}
	res := r.db.WithContext(ctx).
		Model(&models.SpendRequest{}).
		Where("id = ? AND state = ?", request.ID, enums.SpendStatePending).
		Updates(map[string]any{
			"state":       request.State,
			"trait_value": request.TraitValue,
			"refunded":    request.Refunded,
			"resolved_at": request.ResolvedAt,
			"resolved_by": request.ResolvedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyProcessed
	}
	return nil
}

// History lists a character's requests most-recent-first. Params.Cursor
// resumes after the last row of the previous page.
func (r *repository) History(ctx context.Context, characterID uuid.UUID, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	var rows []models.SpendRequest
	query := r.db.WithContext(ctx).Where("character_id = ?", characterID)
	if err := pagination.Apply(query, cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	items, next := pagination.Slice(rows, params.Limit, func(row models.SpendRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return &Page{Items: items, NextCursor: next}, nil
}

func (r *repository) Pending(ctx context.Context, characterID uuid.UUID) ([]models.SpendRequest, error) {
	var rows []models.SpendRequest
	if err := r.db.WithContext(ctx).
		Where("character_id = ? AND state = ?", characterID, enums.SpendStatePending).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
