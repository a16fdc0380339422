package referrals

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// Repository handles referral mappings, benefit logs and the referral program
// catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOption(ctx context.Context, id uuid.UUID) (*models.ReferralOption, error)
	CreateMapping(ctx context.Context, mapping *models.ReferralMapping) error
	FindMappingByID(ctx context.Context, id uuid.UUID) (*models.ReferralMapping, error)
	FindMappingByPlanID(ctx context.Context, userPlanID uuid.UUID) (*models.ReferralMapping, error)
	SaveMapping(ctx context.Context, mapping *models.ReferralMapping) error
	CreateBenefitLogs(ctx context.Context, logs []models.ReferralBenefitLog) error
	ListBenefitLogs(ctx context.Context, mappingID uuid.UUID, statuses ...enums.BenefitStatus) ([]models.ReferralBenefitLog, error)
	SaveBenefitLog(ctx context.Context, log *models.ReferralBenefitLog) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a referral repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOption(ctx context.Context, id uuid.UUID) (*models.ReferralOption, error) {
	var option models.ReferralOption
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&option).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &option, nil
}

func (r *repository) CreateMapping(ctx context.Context, mapping *models.ReferralMapping) error {
	return r.db.WithContext(ctx).Create(mapping).Error
}

func (r *repository) FindMappingByID(ctx context.Context, id uuid.UUID) (*models.ReferralMapping, error) {
	var mapping models.ReferralMapping
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&mapping).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &mapping, nil
}

// FindMappingByPlanID resolves the referral, if any, funded by a plan.
func (r *repository) FindMappingByPlanID(ctx context.Context, userPlanID uuid.UUID) (*models.ReferralMapping, error) {
	var mapping models.ReferralMapping
	if err := r.db.WithContext(ctx).
		Where("user_plan_id = ?", userPlanID).
		Order("created_at ASC").
		First(&mapping).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &mapping, nil
}

func (r *repository) SaveMapping(ctx context.Context, mapping *models.ReferralMapping) error {
	return r.db.WithContext(ctx).Save(mapping).Error
}

func (r *repository) CreateBenefitLogs(ctx context.Context, logs []models.ReferralBenefitLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&logs).Error
}

func (r *repository) ListBenefitLogs(ctx context.Context, mappingID uuid.UUID, statuses ...enums.BenefitStatus) ([]models.ReferralBenefitLog, error) {
	query := r.db.WithContext(ctx).Where("referral_mapping_id = ?", mappingID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var logs []models.ReferralBenefitLog
	if err := query.Order("created_at ASC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repository) SaveBenefitLog(ctx context.Context, log *models.ReferralBenefitLog) error {
	return r.db.WithContext(ctx).Save(log).Error
}
