package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// Notification is the delivery log row written by the worker-side consumer.
type Notification struct {
	ID        uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID                 `gorm:"column:user_id;type:uuid;not null;index"`
	Channel   enums.NotificationChannel `gorm:"column:channel;type:text;not null"`
	Template  string                    `gorm:"column:template;not null"`
	Title     string                    `gorm:"column:title;not null"`
	Body      string                    `gorm:"column:body;not null"`
	Metadata  json.RawMessage           `gorm:"column:metadata;type:jsonb"`
	Status    enums.NotificationStatus  `gorm:"column:status;type:text;not null;default:'PENDING'"`
	SentAt    *time.Time                `gorm:"column:sent_at"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
