package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/shikshalabs/enrollhub-backend/pkg/db/types"
)

// EnrollInvite is an enrollment offer. InvitedSessionID is the holding
// session learners sit in until payment confirms; PackageSessionIDs are the
// sessions a confirmed learner is shifted into.
type EnrollInvite struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InstituteID       uuid.UUID         `gorm:"column:institute_id;type:uuid;not null;index"`
	Name              string            `gorm:"column:name;not null"`
	AccessDays        *int              `gorm:"column:access_days"`
	InvitedSessionID  *uuid.UUID        `gorm:"column:invited_session_id;type:uuid"`
	PackageSessionIDs dbtypes.UUIDArray `gorm:"column:package_session_ids;type:uuid[]"`
	IsActive          bool              `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
