package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// Invoice is the billing document for one confirmed payment. The unique
// payment_log_id keeps generation exactly-once per ledger entry.
type Invoice struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InstituteID   uuid.UUID           `gorm:"column:institute_id;type:uuid;not null;index"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	PaymentLogID  uuid.UUID           `gorm:"column:payment_log_id;type:uuid;not null;unique"`
	InvoiceNumber string              `gorm:"column:invoice_number;not null"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      string              `gorm:"column:currency;not null;default:'INR'"`
	Status        enums.InvoiceStatus `gorm:"column:status;type:text;not null;default:'GENERATED'"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}
