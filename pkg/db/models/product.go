package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a referenced catalog row; only the fields license creation
// consults are modeled here.
type Product struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name           string    `gorm:"column:name;not null" json:"name"`
	MaxActivations int       `gorm:"column:max_activations;not null;default:1" json:"maxActivations"`
	IsActive       bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
