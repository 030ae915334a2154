package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/logger"
)

type licenseExpiryRepo interface {
	MarkExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LicenseExpiryJobParams configures the license expiry sweep.
type LicenseExpiryJobParams struct {
	Logger     *logger.Logger
	Repository licenseExpiryRepo
}

// NewLicenseExpiryJob constructs the job that reconciles the stored status
// of active licenses whose expiry date has passed. Verification never trusts
// the stored column alone, so the sweep only keeps listings honest.
func NewLicenseExpiryJob(params LicenseExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("license repository required")
	}
	return &licenseExpiryJob{
		logg: params.Logger,
		repo: params.Repository,
		now:  time.Now,
	}, nil
}

type licenseExpiryJob struct {
	logg *logger.Logger
	repo licenseExpiryRepo
	now  func() time.Time
}

func (j *licenseExpiryJob) Name() string { return "license-expiry" }

func (j *licenseExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	updated, err := j.repo.MarkExpiredBefore(ctx, now)
	if err != nil {
		return fmt.Errorf("license expiry sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"as_of":        now,
		"rows_expired": updated,
	})
	j.logg.Info(logCtx, "license expiry sweep complete")
	return nil
}
