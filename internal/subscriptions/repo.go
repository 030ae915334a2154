package subscriptions

import (
	"context"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/codeseek/codeseek-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes the subscription rows webhook handlers sync against.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a subscription repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new subscription row.
func (r *Repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

// FindLatestForUser returns the user's most recent subscription, if any.
func (r *Repository) FindLatestForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var row models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateStatus overwrites the status and optional billing fields.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SubscriptionStatus, nextBillingAt, cancelledAt *time.Time) error {
	updates := map[string]any{"status": status}
	if nextBillingAt != nil {
		updates["next_billing_at"] = *nextBillingAt
	}
	if cancelledAt != nil {
		updates["cancelled_at"] = *cancelledAt
	}
	result := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
