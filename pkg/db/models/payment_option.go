package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// PaymentOption prices an enrollment offer. ValidityDays bounds the
// entitlement window when the invite carries no access_days of its own.
type PaymentOption struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InstituteID  uuid.UUID               `gorm:"column:institute_id;type:uuid;not null;index"`
	Type         enums.PaymentOptionType `gorm:"column:type;type:text;not null"`
	Name         string                  `gorm:"column:name;not null"`
	Amount       decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null;default:0"`
	Currency     string                  `gorm:"column:currency;not null;default:'INR'"`
	ValidityDays *int                    `gorm:"column:validity_days"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
