package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// ReferralMapping links one referral-driven enrollment: referrer, referee,
// the code used and the referee's funding plan. PENDING until that plan is
// paid, then ACTIVE.
type ReferralMapping struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InstituteID      uuid.UUID            `gorm:"column:institute_id;type:uuid;not null;index"`
	ReferrerUserID   uuid.UUID            `gorm:"column:referrer_user_id;type:uuid;not null;index"`
	RefereeUserID    uuid.UUID            `gorm:"column:referee_user_id;type:uuid;not null;index"`
	ReferralCode     string               `gorm:"column:referral_code;not null"`
	UserPlanID       uuid.UUID            `gorm:"column:user_plan_id;type:uuid;not null;index"`
	ReferralOptionID *uuid.UUID           `gorm:"column:referral_option_id;type:uuid"`
	Status           enums.ReferralStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
