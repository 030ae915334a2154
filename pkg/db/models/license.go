package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/codeseek/codeseek-backend/pkg/enums"
)

// License is a purchased right to use a product, identified by a unique key
// and bound to exactly one user/product pair.
type License struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID      uuid.UUID           `gorm:"column:product_id;type:uuid;not null" json:"productId"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null" json:"userId"`
	Key            string              `gorm:"column:key;not null;unique" json:"key"`
	ActivatedOn    *time.Time          `gorm:"column:activated_on" json:"activatedOn"`
	ExpiresOn      *time.Time          `gorm:"column:expires_on" json:"expiresOn"`
	Status         enums.LicenseStatus `gorm:"column:status;type:license_status;not null;default:'pending'" json:"status"`
	MaxActivations int                 `gorm:"column:max_activations;not null;default:1" json:"maxActivations"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// IsValidAt is the single entitlement predicate: the license must be active
// and either carry no expiry or expire after the supplied instant. Stored
// status is evaluated lazily; a sweep may reconcile the column later, but
// callers must never duplicate this logic.
func (l License) IsValidAt(now time.Time) bool {
	if l.Status != enums.LicenseStatusActive {
		return false
	}
	if l.ExpiresOn != nil && now.After(*l.ExpiresOn) {
		return false
	}
	return true
}
