package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// LearnerSessionEntry is a learner's membership in one session. Placeholder
// rows start INVITED and are shifted to ACTIVE package sessions once the
// funding plan is paid.
type LearnerSessionEntry struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	SessionID      uuid.UUID         `gorm:"column:session_id;type:uuid;not null;index"`
	EnrollInviteID *uuid.UUID        `gorm:"column:enroll_invite_id;type:uuid"`
	UserPlanID     *uuid.UUID        `gorm:"column:user_plan_id;type:uuid;index"`
	Status         enums.EntryStatus `gorm:"column:status;type:text;not null;default:'INVITED'"`
	ExpiryDate     *time.Time        `gorm:"column:expiry_date"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
