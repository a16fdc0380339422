package enrollment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// Repository handles learner session entries and the enrollment catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateEntry(ctx context.Context, entry *models.LearnerSessionEntry) error
	CreateEntries(ctx context.Context, entries []models.LearnerSessionEntry) error
	ListEntriesByPlan(ctx context.Context, userPlanID uuid.UUID, statuses ...enums.EntryStatus) ([]models.LearnerSessionEntry, error)
	ListInvitedEntries(ctx context.Context, userID, enrollInviteID uuid.UUID) ([]models.LearnerSessionEntry, error)
	UpdateEntriesStatus(ctx context.Context, ids []uuid.UUID, status enums.EntryStatus) error
	RetargetEntries(ctx context.Context, fromPlanID, toPlanID uuid.UUID, newExpiry *time.Time) (int64, error)
	FindEnrollInvite(ctx context.Context, id uuid.UUID) (*models.EnrollInvite, error)
	FindPaymentOption(ctx context.Context, id uuid.UUID) (*models.PaymentOption, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an enrollment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.LearnerSessionEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) CreateEntries(ctx context.Context, entries []models.LearnerSessionEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) ListEntriesByPlan(ctx context.Context, userPlanID uuid.UUID, statuses ...enums.EntryStatus) ([]models.LearnerSessionEntry, error) {
	query := r.db.WithContext(ctx).Where("user_plan_id = ?", userPlanID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var entries []models.LearnerSessionEntry
	if err := query.Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListInvitedEntries returns the placeholder rows parked in the invite's
// holding session for one learner.
func (r *repository) ListInvitedEntries(ctx context.Context, userID, enrollInviteID uuid.UUID) ([]models.LearnerSessionEntry, error) {
	var entries []models.LearnerSessionEntry
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("enroll_invite_id = ?", enrollInviteID).
		Where("status = ?", enums.EntryStatusInvited).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) UpdateEntriesStatus(ctx context.Context, ids []uuid.UUID, status enums.EntryStatus) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.LearnerSessionEntry{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repository) RetargetEntries(ctx context.Context, fromPlanID, toPlanID uuid.UUID, newExpiry *time.Time) (int64, error) {
	updates := map[string]any{
		"user_plan_id": toPlanID,
		"updated_at":   time.Now().UTC(),
	}
	if newExpiry != nil {
		updates["expiry_date"] = *newExpiry
	}
	result := r.db.WithContext(ctx).
		Model(&models.LearnerSessionEntry{}).
		Where("user_plan_id = ?", fromPlanID).
		Where("status <> ?", enums.EntryStatusDeleted).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) FindEnrollInvite(ctx context.Context, id uuid.UUID) (*models.EnrollInvite, error) {
	var invite models.EnrollInvite
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&invite).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invite, nil
}

func (r *repository) FindPaymentOption(ctx context.Context, id uuid.UUID) (*models.PaymentOption, error) {
	var option models.PaymentOption
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
