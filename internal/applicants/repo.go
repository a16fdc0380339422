package applicants

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
)

// Repository handles applicant rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Applicant, error)
	UpdateStage(ctx context.Context, userID uuid.UUID, stage string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an applicant repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Exists runs a bare existence probe against the unique user_id index. Used
// on the payment hot path, so no row data is loaded.
func (r *repository) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var one int
	err := r.db.WithContext(ctx).
		Raw("SELECT 1 FROM applicants WHERE user_id = ? LIMIT 1", userID).
		Scan(&one).Error
	if err != nil {
		return false, err
	}
	return one == 1, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Applicant, error) {
	var applicant models.Applicant
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&applicant).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &applicant, nil
}

func (r *repository) UpdateStage(ctx context.Context, userID uuid.UUID, stage string) error {
	return r.db.WithContext(ctx).
		Model(&models.Applicant{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"stage":      stage,
			"updated_at": time.Now().UTC(),
		}).Error
}
