package plans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// Repository handles user plan persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, plan *models.UserPlan) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.UserPlan, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.UserPlan, error)
	FindBlockingSibling(ctx context.Context, userID, enrollInviteID, excludeID uuid.UUID) (*models.UserPlan, error)
	FindOldestPending(ctx context.Context, userID, enrollInviteID uuid.UUID) (*models.UserPlan, error)
	ListByUser(ctx context.Context, userID uuid.UUID, statuses ...enums.PlanStatus) ([]models.UserPlan, error)
	ListExpiredActiveIDs(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error)
	Save(ctx context.Context, plan *models.UserPlan) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plan repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// lockForUpdate adds a row lock on dialects that support it. The sqlite used
// in tests runs single-writer and needs none.
func (r *repository) lockForUpdate(query *gorm.DB) *gorm.DB {
	if r.db.Dialector != nil && r.db.Dialector.Name() == "postgres" {
		return query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return query
}

func (r *repository) Create(ctx context.Context, plan *models.UserPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.UserPlan, error) {
	var plan models.UserPlan
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.UserPlan, error) {
	var plan models.UserPlan
	if err := r.lockForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// FindBlockingSibling locks and returns another ACTIVE or PENDING plan for
// the same offer, if one exists. The lock serializes concurrent activations
// for one learner.
func (r *repository) FindBlockingSibling(ctx context.Context, userID, enrollInviteID, excludeID uuid.UUID) (*models.UserPlan, error) {
	var plan models.UserPlan
	if err := r.lockForUpdate(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Where("enroll_invite_id = ?", enrollInviteID).
		Where("status IN ?", []enums.PlanStatus{enums.PlanStatusActive, enums.PlanStatusPending}).
		Where("id <> ?", excludeID).
		Order("created_at ASC").
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// FindOldestPending returns the next stacked plan in purchase order.
func (r *repository) FindOldestPending(ctx context.Context, userID, enrollInviteID uuid.UUID) (*models.UserPlan, error) {
	var plan models.UserPlan
	if err := r.lockForUpdate(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Where("enroll_invite_id = ?", enrollInviteID).
		Where("status = ?", enums.PlanStatusPending).
		Order("created_at ASC").
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, statuses ...enums.PlanStatus) ([]models.UserPlan, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var out []models.UserPlan
	if err := query.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListExpiredActiveIDs returns plans whose window has lapsed. Only ids are
// read; the sweep re-checks each row under lock in its own transaction.
func (r *repository) ListExpiredActiveIDs(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 250
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.UserPlan{}).
		Where("status = ?", enums.PlanStatusActive).
		Where("end_date IS NOT NULL AND end_date < ?", asOf).
		Order("end_date ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) Save(ctx context.Context, plan *models.UserPlan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}
