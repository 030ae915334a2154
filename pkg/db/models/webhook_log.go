package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/codeseek/codeseek-backend/pkg/enums"
)

// WebhookLog is the write-ahead record of an inbound provider webhook.
// The row exists before any processing logic runs; the dispatcher is the
// only writer of status/error_message after creation.
type WebhookLog struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Provider     string              `gorm:"column:provider;not null;index" json:"provider"`
	EventType    string              `gorm:"column:event_type;not null;index" json:"eventType"`
	Payload      json.RawMessage     `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	Status       enums.WebhookStatus `gorm:"column:status;type:webhook_status;not null;default:'pending';index" json:"status"`
	ErrorMessage *string             `gorm:"column:error_message" json:"errorMessage,omitempty"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime;index" json:"createdAt"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
