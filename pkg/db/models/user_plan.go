package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// UserPlan is a learner's entitlement for one enrollment offer. The plan and
// payment option are denormalized into PlanSnapshot at creation so the audit
// trail survives later catalog edits.
type UserPlan struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	InstituteID     uuid.UUID        `gorm:"column:institute_id;type:uuid;not null;index"`
	EnrollInviteID  uuid.UUID        `gorm:"column:enroll_invite_id;type:uuid;not null;index"`
	PaymentOptionID uuid.UUID        `gorm:"column:payment_option_id;type:uuid;not null"`
	PlanSnapshot    json.RawMessage  `gorm:"column:plan_snapshot;type:jsonb"`
	Source          enums.PlanSource `gorm:"column:source;type:text;not null;default:'USER'"`
	SubOrgID        *uuid.UUID       `gorm:"column:sub_org_id;type:uuid"`
	Status          enums.PlanStatus `gorm:"column:status;type:text;not null;default:'PENDING_FOR_PAYMENT'"`
	StartDate       *time.Time       `gorm:"column:start_date"`
	EndDate         *time.Time       `gorm:"column:end_date"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
