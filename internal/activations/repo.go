package activations

import (
	"context"

	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes activation persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an activation repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CountForLicenseTx counts activations for the license inside the supplied
// transaction so a concurrent insert cannot slip between check and create.
func (r *Repository) CountForLicenseTx(tx *gorm.DB, licenseID uuid.UUID) (int64, error) {
	var count int64
	err := tx.Model(&models.Activation{}).Where("license_id = ?", licenseID).Count(&count).Error
	return count, err
}

// CreateTx inserts the activation inside the supplied transaction.
func (r *Repository) CreateTx(tx *gorm.DB, activation *models.Activation) error {
	return tx.Create(activation).Error
}

// FindForLicense returns the activation only when it belongs to the license.
func (r *Repository) FindForLicense(ctx context.Context, licenseID, activationID uuid.UUID) (*models.Activation, error) {
	var row models.Activation
	err := r.db.WithContext(ctx).
		First(&row, "id = ? AND license_id = ?", activationID, licenseID).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Delete removes a single activation row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Activation{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
