package models

import (
	"time"

	"github.com/google/uuid"
)

// Activation binds a license to a domain, counted against the license's
// activation quota. Rows are created and destroyed, never updated.
type Activation struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	LicenseID   uuid.UUID `gorm:"column:license_id;type:uuid;not null" json:"licenseId"`
	Domain      string    `gorm:"column:domain;not null" json:"domain"`
	IPAddress   *string   `gorm:"column:ip_address" json:"ipAddress,omitempty"`
	ActivatedAt time.Time `gorm:"column:activated_at;autoCreateTime" json:"activatedAt"`
}
