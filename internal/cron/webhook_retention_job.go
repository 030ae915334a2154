package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/logger"
)

const webhookRetentionDays = 30

type webhookRetentionRepo interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// WebhookRetentionJobParams configures the webhook log cleanup.
type WebhookRetentionJobParams struct {
	Logger     *logger.Logger
	Repository webhookRetentionRepo
	Retention  int
}

// NewWebhookRetentionJob constructs the job that prunes settled webhook
// log rows past the retention window.
func NewWebhookRetentionJob(params WebhookRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("webhook repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = webhookRetentionDays
	}
	return &webhookRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type webhookRetentionJob struct {
	logg      *logger.Logger
	repo      webhookRetentionRepo
	retention int
	now       func() time.Time
}

func (j *webhookRetentionJob) Name() string { return "webhook-retention" }

func (j *webhookRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("webhook retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "webhook retention cleanup complete")
	return nil
}
