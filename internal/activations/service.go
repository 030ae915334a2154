package activations

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/db/models"
	pkgerrors "github.com/codeseek/codeseek-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Domain labels are alphanumeric with inner hyphens; the TLD is 2-6 letters.
var domainPattern = regexp.MustCompile(`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,6}$`)

type activationsRepository interface {
	CountForLicenseTx(tx *gorm.DB, licenseID uuid.UUID) (int64, error)
	CreateTx(tx *gorm.DB, activation *models.Activation) error
	FindForLicense(ctx context.Context, licenseID, activationID uuid.UUID) (*models.Activation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type licensesRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*models.License, error)
	StampActivatedTx(tx *gorm.DB, id uuid.UUID, activatedAt time.Time) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service enforces per-license activation quotas and domain binding.
type Service interface {
	AddActivation(ctx context.Context, licenseID uuid.UUID, input AddInput) (*models.Activation, error)
	RemoveActivation(ctx context.Context, licenseID, activationID uuid.UUID) error
}

// AddInput carries an activation request. IPAddress is optional.
type AddInput struct {
	Domain    string
	IPAddress string
}

type service struct {
	repo     activationsRepository
	licenses licensesRepository
	tx       txRunner
	now      func() time.Time
}

// NewService wires the activation manager.
func NewService(repo activationsRepository, licenses licensesRepository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, errors.New("activations repository required")
	}
	if licenses == nil {
		return nil, errors.New("licenses repository required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	return &service{
		repo:     repo,
		licenses: licenses,
		tx:       tx,
		now:      time.Now,
	}, nil
}

func (s *service) AddActivation(ctx context.Context, licenseID uuid.UUID, input AddInput) (*models.Activation, error) {
	if licenseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}

	domain := strings.ToLower(strings.TrimSpace(input.Domain))
	if domain == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "domain is required")
	}
	if !domainPattern.MatchString(domain) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "domain is not a valid domain name")
	}

	var ipAddress *string
	if trimmed := strings.TrimSpace(input.IPAddress); trimmed != "" {
		if net.ParseIP(trimmed) == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "ip_address is not a valid IP")
		}
		ipAddress = &trimmed
	}

	if _, err := s.licenses.FindByID(ctx, licenseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}

	activation := &models.Activation{
		LicenseID:   licenseID,
		Domain:      domain,
		IPAddress:   ipAddress,
		ActivatedAt: s.now(),
	}

	// The quota check must serialize: re-read the license row FOR UPDATE
	// inside the transaction and hold the lock across count and insert, so
	// two concurrent requests cannot both observe room under the cap.
	// Repeat domains are allowed; the quota is the only constraint.
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.licenses.FindForUpdateTx(tx, licenseID)
		if err != nil {
			return err
		}
		count, err := s.repo.CountForLicenseTx(tx, licenseID)
		if err != nil {
			return err
		}
		if count >= int64(locked.MaxActivations) {
			return pkgerrors.New(pkgerrors.CodeQuotaExceeded,
				fmt.Sprintf("activation limit of %d reached for this license", locked.MaxActivations))
		}
		if err := s.repo.CreateTx(tx, activation); err != nil {
			return err
		}
		if locked.ActivatedOn == nil {
			return s.licenses.StampActivatedTx(tx, licenseID, activation.ActivatedAt)
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create activation")
	}

	return activation, nil
}

func (s *service) RemoveActivation(ctx context.Context, licenseID, activationID uuid.UUID) error {
	if licenseID == uuid.Nil || activationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "license id and activation id are required")
	}

	activation, err := s.repo.FindForLicense(ctx, licenseID, activationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "activation not found for this license")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup activation")
	}

	if err := s.repo.Delete(ctx, activation.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "activation not found for this license")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete activation")
	}
	return nil
}
