package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	"github.com/shikshalabs/enrollhub-backend/pkg/pagination"
)

// Repository handles payment ledger persistence. Ledger rows are append-only
// apart from the status fields the processor owns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.PaymentLog) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentLog, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.PaymentLog, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.PaymentLog, error)
	UpdateStatusFields(ctx context.Context, entry *models.PaymentLog) error
	List(ctx context.Context, params ListQuery) ([]models.PaymentLog, *pagination.Cursor, error)
	ListStaleInitiated(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.PaymentLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentLog, error) {
	var entry models.PaymentLog
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&entry).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// FindByOrderID scans the specific-data blob for a gateway-minted order id.
// The expression matches the ix_payment_logs_order_id index.
func (r *repository) FindByOrderID(ctx context.Context, orderID string) (*models.PaymentLog, error) {
	if orderID == "" {
		return nil, nil
	}
	var entry models.PaymentLog
	if err := r.db.WithContext(ctx).
		Where("payment_specific_data ->> 'orderId' = ?", orderID).
		Order("created_at ASC").
		First(&entry).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.PaymentLog, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var entries []models.PaymentLog
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// UpdateStatusFields persists only the processor-owned mutable columns.
func (r *repository) UpdateStatusFields(ctx context.Context, entry *models.PaymentLog) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentLog{}).
		Where("id = ?", entry.ID).
		Updates(map[string]any{
			"status":                entry.Status,
			"payment_status":        entry.PaymentStatus,
			"payment_specific_data": entry.PaymentSpecificData,
			"order_status":          entry.OrderStatus,
			"vendor_id":             entry.VendorID,
		}).Error
}

// ListQuery configures admin ledger listings.
type ListQuery struct {
	InstituteID   *uuid.UUID
	UserID        *uuid.UUID
	PaymentStatus *enums.PaymentStatus
	Limit         int
	Cursor        *pagination.Cursor
}

func (r *repository) List(ctx context.Context, params ListQuery) ([]models.PaymentLog, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.PaymentLog{})
	if params.InstituteID != nil {
		query = query.Where("institute_id = ?", *params.InstituteID)
	}
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *params.PaymentStatus)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var entries []models.PaymentLog
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[limit-1]
		return entries, &pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		}, nil
	}

	return entries, nil, nil
}

// ListStaleInitiated returns entries created before olderThan that never left
// INITIATED, oldest first.
func (r *repository) ListStaleInitiated(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentLog, error) {
	if limit <= 0 {
		limit = 250
	}
	var entries []models.PaymentLog
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.PaymentLogStatusInitiated).
		Where("created_at < ?", olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
