package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReferralOption is the benefit configuration attached to a referral
// program: what the referrer and the referee each receive.
type ReferralOption struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InstituteID     uuid.UUID       `gorm:"column:institute_id;type:uuid;not null;index"`
	Name            string          `gorm:"column:name;not null"`
	ReferrerBenefit json.RawMessage `gorm:"column:referrer_benefit;type:jsonb"`
	RefereeBenefit  json.RawMessage `gorm:"column:referee_benefit;type:jsonb"`
	IsActive        bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
