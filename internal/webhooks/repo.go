package webhooks

import (
	"context"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/codeseek/codeseek-backend/pkg/enums"
	"github.com/codeseek/codeseek-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists webhook log rows. The log is a write-ahead record:
// ingestion inserts, the dispatcher settles status, admin endpoints read.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a webhook repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new log row.
func (r *Repository) Create(ctx context.Context, log *models.WebhookLog) (*models.WebhookLog, error) {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return nil, err
	}
	return log, nil
}

// FindByID returns the log row or gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookLog, error) {
	var row models.WebhookLog
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// MarkProcessed settles the row as processed and clears any prior error.
func (r *Repository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.settle(ctx, id, enums.WebhookStatusProcessed, nil)
}

// MarkFailed settles the row as failed with the handler's error message.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return r.settle(ctx, id, enums.WebhookStatusFailed, &message)
}

func (r *Repository) settle(ctx context.Context, id uuid.UUID, status enums.WebhookStatus, message *string) error {
	result := r.db.WithContext(ctx).Model(&models.WebhookLog{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"error_message": message,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ResetForRetry flips a row back to pending so the dispatcher will run it
// again. The guard against re-running processed rows lives in the service;
// this is a plain conditional write that skips rows already pending.
func (r *Repository) ResetForRetry(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.WebhookLog{}).
		Where("id = ? AND status <> ?", id, enums.WebhookStatusPending).
		Updates(map[string]any{
			"status":        enums.WebhookStatusPending,
			"error_message": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

type listQuery struct {
	provider  string
	status    enums.WebhookStatus
	eventType string
	limit     int
	cursor    *pagination.Cursor
}

// List returns log rows newest first with optional provider/status/event
// filters and cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.WebhookLog, error) {
	query := r.db.WithContext(ctx).Model(&models.WebhookLog{})

	if opts.provider != "" {
		query = query.Where("provider = ?", opts.provider)
	}
	if opts.status != "" {
		query = query.Where("status = ?", opts.status)
	}
	if opts.eventType != "" {
		query = query.Where("event_type = ?", opts.eventType)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.WebhookLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// StatusBreakdown is one (provider, status) bucket of the stats rollup.
type StatusBreakdown struct {
	Provider string              `gorm:"column:provider" json:"provider"`
	Status   enums.WebhookStatus `gorm:"column:status" json:"status"`
	Count    int64               `gorm:"column:count" json:"count"`
}

// Stats aggregates total rows, rows from the trailing window, and a
// per-provider/status breakdown.
func (r *Repository) Stats(ctx context.Context, since time.Time) (total int64, recent int64, breakdown []StatusBreakdown, err error) {
	base := r.db.WithContext(ctx).Model(&models.WebhookLog{})

	if err = base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, 0, nil, err
	}
	if err = base.Session(&gorm.Session{}).Where("created_at >= ?", since).Count(&recent).Error; err != nil {
		return 0, 0, nil, err
	}
	err = base.Session(&gorm.Session{}).
		Select("provider, status, COUNT(*) AS count").
		Group("provider").Group("status").
		Order("provider").Order("status").
		Scan(&breakdown).Error
	if err != nil {
		return 0, 0, nil, err
	}
	return total, recent, breakdown, nil
}

// ClearAll truncates the log, returning how many rows were removed.
func (r *Repository) ClearAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.WebhookLog{})
	return result.RowsAffected, result.Error
}

// DeleteOlderThan removes settled rows past the retention cutoff. Pending
// rows are kept regardless of age so an in-flight dispatch never loses its
// record.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ? AND status <> ?", cutoff, enums.WebhookStatusPending).
		Delete(&models.WebhookLog{})
	return result.RowsAffected, result.Error
}
