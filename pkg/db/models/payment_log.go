package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// PaymentLog is the immutable ledger entry for one payment attempt. Its ID
// doubles as the canonical order identifier sent to the gateway. Rows are
// created at checkout, mutated only by the status processor, never deleted.
type PaymentLog struct {
	ID                  uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID              uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	InstituteID         uuid.UUID              `gorm:"column:institute_id;type:uuid;not null;index"`
	UserPlanID          *uuid.UUID             `gorm:"column:user_plan_id;type:uuid"`
	Vendor              enums.PaymentGateway   `gorm:"column:vendor;type:text;not null"`
	VendorID            *string                `gorm:"column:vendor_id"`
	Status              enums.PaymentLogStatus `gorm:"column:status;type:text;not null;default:'INITIATED'"`
	PaymentStatus       *enums.PaymentStatus   `gorm:"column:payment_status;type:text"`
	PaymentAmount       decimal.Decimal        `gorm:"column:payment_amount;type:numeric(12,2);not null"`
	Currency            string                 `gorm:"column:currency;not null;default:'INR'"`
	PaymentSpecificData json.RawMessage        `gorm:"column:payment_specific_data;type:jsonb"`
	TrackingID          *string                `gorm:"column:tracking_id"`
	TrackingSource      *string                `gorm:"column:tracking_source"`
	OrderStatus         *string                `gorm:"column:order_status"`
	CreatedAt           time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
