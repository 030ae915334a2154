package users

import (
	"context"
	"strings"

	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes the user lookups the license and webhook flows need.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a user repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID returns the user row or gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var row models.User
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByChargebeeCustomerID resolves a user from the billing provider's
// customer identifier.
func (r *Repository) FindByChargebeeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	var row models.User
	if err := r.db.WithContext(ctx).First(&row, "chargebee_customer_id = ?", customerID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByEmail resolves a user by email, case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var row models.User
	err := r.db.WithContext(ctx).
		First(&row, "lower(email) = ?", strings.ToLower(email)).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
