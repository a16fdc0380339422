package models

import (
	"time"

	"github.com/google/uuid"
)

// Applicant mirrors a user going through the applicant flow. The unique
// user_id index backs the existence check in the effects coordinator.
type Applicant struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	EnrollInviteID *uuid.UUID `gorm:"column:enroll_invite_id;type:uuid"`
	Stage          *string    `gorm:"column:stage"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
