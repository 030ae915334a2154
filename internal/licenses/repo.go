package licenses

import (
	"context"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/codeseek/codeseek-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes license persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a license repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new license row.
func (r *Repository) Create(ctx context.Context, license *models.License) (*models.License, error) {
	if err := r.db.WithContext(ctx).Create(license).Error; err != nil {
		return nil, err
	}
	return license, nil
}

// FindByID returns the license row or gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	var row models.License
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByKey returns the license row matching the key or gorm.ErrRecordNotFound.
func (r *Repository) FindByKey(ctx context.Context, key string) (*models.License, error) {
	var row models.License
	if err := r.db.WithContext(ctx).First(&row, "key = ?", key).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindForUpdateTx reads the license row under a FOR UPDATE lock inside the
// supplied transaction. Callers hold the lock until the transaction ends,
// serializing quota checks against the row.
func (r *Repository) FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*models.License, error) {
	var row models.License
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// StampActivatedTx records the first activation time inside the supplied
// transaction.
func (r *Repository) StampActivatedTx(tx *gorm.DB, id uuid.UUID, activatedAt time.Time) error {
	return tx.Model(&models.License{}).
		Where("id = ?", id).
		Update("activated_on", activatedAt).Error
}

// KeyExists reports whether any license already carries the key.
func (r *Repository) KeyExists(ctx context.Context, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.License{}).Where("key = ?", key).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// licenseRow carries a license plus its activation count for admin listings.
type licenseRow struct {
	models.License
	ActivationCount int64 `gorm:"column:activation_count"`
}

// List returns licenses with activation counts using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]licenseRow, error) {
	query := r.db.WithContext(ctx).Model(&models.License{}).
		Select("licenses.*, (SELECT COUNT(*) FROM activations WHERE activations.license_id = licenses.id) AS activation_count")

	if opts.userID != uuid.Nil {
		query = query.Where("user_id = ?", opts.userID)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []licenseRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update persists all mutable license fields.
func (r *Repository) Update(ctx context.Context, license *models.License) error {
	return r.db.WithContext(ctx).Save(license).Error
}

// UpdateStatus overwrites only the status column. Last write wins.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.LicenseStatus) error {
	result := r.db.WithContext(ctx).Model(&models.License{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the license; activations cascade at the storage layer.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.License{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ResetTx deletes the license's activations and clears activated_on inside
// the supplied transaction, returning the number of removed activations.
func (r *Repository) ResetTx(tx *gorm.DB, id uuid.UUID) (int64, error) {
	result := tx.Delete(&models.Activation{}, "license_id = ?", id)
	if result.Error != nil {
		return 0, result.Error
	}
	if err := tx.Model(&models.License{}).Where("id = ?", id).Update("activated_on", nil).Error; err != nil {
		return 0, err
	}
	return result.RowsAffected, nil
}

// MarkExpiredBefore flips stale active licenses to expired. The sweep only
// reconciles the stored column; IsValidAt remains the read-time truth.
func (r *Repository) MarkExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.License{}).
		Where("status = ? AND expires_on IS NOT NULL AND expires_on < ?", enums.LicenseStatusActive, cutoff).
		Update("status", enums.LicenseStatusExpired)
	return result.RowsAffected, result.Error
}

// ActivationsForLicense returns activations ordered newest first.
func (r *Repository) ActivationsForLicense(ctx context.Context, id uuid.UUID) ([]models.Activation, error) {
	var rows []models.Activation
	err := r.db.WithContext(ctx).
		Where("license_id = ?", id).
		Order("activated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
