package characters

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/chronicle/pkg/db"
	"github.com/angelmondragon/chronicle/pkg/db/models"
	"github.com/angelmondragon/chronicle/pkg/enums"
	pkgerrors "github.com/angelmondragon/chronicle/pkg/errors"
)

// ErrNotFound is returned when a character id does not exist.
var ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "character not found")

// Repository persists characters and their trait sheets.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, character *models.Character) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Character, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Character, error)
	SetXP(ctx context.Context, id uuid.UUID, xp int) error
	Balance(ctx context.Context, id uuid.UUID) (int, error)
	GetTrait(ctx context.Context, id uuid.UUID, traitType enums.TraitType, name string) (*models.CharacterTrait, error)
	UpsertTrait(ctx context.Context, trait *models.CharacterTrait) error
	ListTraits(ctx context.Context, id uuid.UUID) ([]models.CharacterTrait, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a character repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, character *models.Character) error {
	return r.db.WithContext(ctx).Create(character).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Character, error) {
	var character models.Character
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&character).Error; err != nil {
		return nil, notFound(err)
	}
	return &character, nil
}

// LockForUpdate reads the character row under SELECT ... FOR UPDATE. It must
// run inside a transaction.
func (r *repository) LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Character, error) {
	var character models.Character
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&character).Error; err != nil {
		return nil, notFound(err)
	}
	return &character, nil
}

// SetXP overwrites the balance of a character the caller holds locked.
func (r *repository) SetXP(ctx context.Context, id uuid.UUID, xp int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Character{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"xp":         xp,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Balance(ctx context.Context, id uuid.UUID) (int, error) {
	var character models.Character
	if err := r.db.WithContext(ctx).Select("xp").Where("id = ?", id).First(&character).Error; err != nil {
		return 0, notFound(err)
	}
	return character.XP, nil
}

// GetTrait returns nil, nil when the character has no rating for the trait yet.
func (r *repository) GetTrait(ctx context.Context, id uuid.UUID, traitType enums.TraitType, name string) (*models.CharacterTrait, error) {
	var trait models.CharacterTrait
	err := r.db.WithContext(ctx).
		Where("character_id = ? AND trait_type = ? AND trait_name = ?", id, traitType, name).
		First(&trait).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trait, nil
}

func (r *repository) UpsertTrait(ctx context.Context, trait *models.CharacterTrait) error {
	if trait.UpdatedAt.IsZero() {
		trait.UpdatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "character_id"}, {Name: "trait_type"}, {Name: "trait_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(trait).Error
}

func (r *repository) ListTraits(ctx context.Context, id uuid.UUID) ([]models.CharacterTrait, error) {
	var rows []models.CharacterTrait
	if err := r.db.WithContext(ctx).
		Where("character_id = ?", id).
		Order("trait_type ASC").
		Order("trait_name ASC").
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
