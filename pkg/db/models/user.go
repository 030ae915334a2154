package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a referenced account row. Registration and session handling live
// outside this service; webhook handlers only resolve users for notification.
type User struct {
	ID                  uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username            string    `gorm:"column:username;not null" json:"username"`
	Email               string    `gorm:"column:email;not null;unique" json:"email"`
	ChargebeeCustomerID *string   `gorm:"column:chargebee_customer_id;uniqueIndex" json:"chargebeeCustomerId,omitempty"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
