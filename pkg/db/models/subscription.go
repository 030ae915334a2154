package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/codeseek/codeseek-backend/pkg/enums"
)

// Subscription mirrors the billing provider's view of a recurring plan.
// Webhook handlers are the only writers of status/next_billing_at here.
type Subscription struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        uuid.UUID                `gorm:"column:user_id;type:uuid;not null" json:"userId"`
	PlanID        string                   `gorm:"column:plan_id;not null" json:"planId"`
	Status        enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'pending'" json:"status"`
	NextBillingAt *time.Time               `gorm:"column:next_billing_at" json:"nextBillingAt"`
	CancelledAt   *time.Time               `gorm:"column:cancelled_at" json:"cancelledAt"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
