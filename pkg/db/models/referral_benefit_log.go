package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// ReferralBenefitLog is one benefit granted to one beneficiary of one
// referral mapping. Monetary benefits activate on payment success; CONTENT
// and MEMBERSHIP_EXTENSION activate only after their delivery step runs.
type ReferralBenefitLog struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReferralMappingID uuid.UUID           `gorm:"column:referral_mapping_id;type:uuid;not null;index"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Beneficiary       enums.Beneficiary   `gorm:"column:beneficiary;type:text;not null"`
	BenefitType       enums.BenefitType   `gorm:"column:benefit_type;type:text;not null"`
	BenefitValue      json.RawMessage     `gorm:"column:benefit_value;type:jsonb"`
	Status            enums.BenefitStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
