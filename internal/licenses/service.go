package licenses

import (
	"context"
	"errors"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/db"
	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/codeseek/codeseek-backend/pkg/enums"
	pkgerrors "github.com/codeseek/codeseek-backend/pkg/errors"
	pkgpagination "github.com/codeseek/codeseek-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type licensesRepository interface {
	Create(ctx context.Context, license *models.License) (*models.License, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	FindByKey(ctx context.Context, key string) (*models.License, error)
	List(ctx context.Context, opts listQuery) ([]licenseRow, error)
	Update(ctx context.Context, license *models.License) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.LicenseStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	ResetTx(tx *gorm.DB, id uuid.UUID) (int64, error)
	ActivationsForLicense(ctx context.Context, id uuid.UUID) ([]models.Activation, error)
}

type usersRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type productsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type keyGenerator interface {
	GenerateKey(ctx context.Context) (string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes license issuance, verification, and lifecycle semantics.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.License, error)
	Get(ctx context.Context, id uuid.UUID) (*Detail, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.License, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.License, error)
	Reset(ctx context.Context, id uuid.UUID) (*ResetResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Verify(ctx context.Context, key string) (*VerifyResult, error)
}

// CreateInput holds the fields an operator supplies when issuing a license.
type CreateInput struct {
	ProductID      uuid.UUID
	UserID         uuid.UUID
	ExpiresOn      *time.Time
	MaxActivations *int
}

// UpdateInput holds the mutable fields of an existing license. Nil means
// leave unchanged; the key is immutable and never accepted here.
type UpdateInput struct {
	ProductID      *uuid.UUID
	UserID         *uuid.UUID
	ExpiresOn      *time.Time
	MaxActivations *int
}

// ResetResult reports how many activations a reset removed.
type ResetResult struct {
	License      *models.License `json:"license"`
	DeletedCount int64           `json:"deletedCount"`
}

// VerifyResult is the public verification outcome. It intentionally carries
// no internal identifiers.
type VerifyResult struct {
	Valid  bool                `json:"valid"`
	Status enums.LicenseStatus `json:"status"`
}

type service struct {
	repo     licensesRepository
	users    usersRepository
	products productsRepository
	keygen   keyGenerator
	tx       txRunner
	now      func() time.Time
}

// NewService builds a license service backed by the provided repositories.
func NewService(repo licensesRepository, users usersRepository, products productsRepository, keygen keyGenerator, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, errors.New("license repository required")
	}
	if users == nil {
		return nil, errors.New("users repository required")
	}
	if products == nil {
		return nil, errors.New("products repository required")
	}
	if keygen == nil {
		return nil, errors.New("key generator required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	return &service{
		repo:     repo,
		users:    users,
		products: products,
		keygen:   keygen,
		tx:       tx,
		now:      time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.License, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id is required")
	}
	if input.MaxActivations != nil && *input.MaxActivations < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max_activations must be at least 1")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup product")
	}
	if _, err := s.users.FindByID(ctx, input.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	key, err := s.keygen.GenerateKey(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate license key")
	}

	maxActivations := product.MaxActivations
	if input.MaxActivations != nil {
		maxActivations = *input.MaxActivations
	}
	if maxActivations < 1 {
		maxActivations = 1
	}

	license := &models.License{
		ProductID:      input.ProductID,
		UserID:         input.UserID,
		Key:            key,
		ExpiresOn:      input.ExpiresOn,
		Status:         enums.LicenseStatusActive,
		MaxActivations: maxActivations,
	}

	created, err := s.repo.Create(ctx, license)
	if err != nil {
		if db.IsUniqueViolation(err, "ux_licenses_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "license key already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create license")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	license, err := s.findLicense(ctx, id)
	if err != nil {
		return nil, err
	}
	activations, err := s.repo.ActivationsForLicense(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list activations")
	}
	return &Detail{License: *license, Activations: activations}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		userID: params.UserID,
		limit:  pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list licenses")
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			CreatedAt: rows[limit].License.CreatedAt,
			ID:        rows[limit].License.ID,
		})
		rows = rows[:limit]
	}

	items := make([]ListItem, len(rows))
	for i, row := range rows {
		items[i] = toListItem(row)
	}

	return &ListResult{Items: items, Cursor: nextCursor}, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.License, error) {
	license, err := s.findLicense(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.ProductID != nil {
		if _, err := s.products.FindByID(ctx, *input.ProductID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup product")
		}
		license.ProductID = *input.ProductID
	}
	if input.UserID != nil {
		if _, err := s.users.FindByID(ctx, *input.UserID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
		}
		license.UserID = *input.UserID
	}
	if input.ExpiresOn != nil {
		license.ExpiresOn = input.ExpiresOn
	}
	if input.MaxActivations != nil {
		if *input.MaxActivations < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "max_activations must be at least 1")
		}
		license.MaxActivations = *input.MaxActivations
	}

	if err := s.repo.Update(ctx, license); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update license")
	}
	return license, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.License, error) {
	parsed, err := enums.ParseLicenseStatus(status)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid status is required (pending, active, expired, revoked)")
	}

	license, err := s.findLicense(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, id, parsed); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update license status")
	}

	license.Status = parsed
	return license, nil
}

func (s *service) Reset(ctx context.Context, id uuid.UUID) (*ResetResult, error) {
	license, err := s.findLicense(ctx, id)
	if err != nil {
		return nil, err
	}

	var deleted int64
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.ResetTx(tx, id)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset license")
	}

	license.ActivatedOn = nil
	return &ResetResult{License: license, DeletedCount: deleted}, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete license")
	}
	return nil
}

// Verify is the public key check. Unknown and malformed keys both surface as
// the same NotFound so callers cannot probe the keyspace.
func (s *service) Verify(ctx context.Context, key string) (*VerifyResult, error) {
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invalid license")
	}

	license, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invalid license")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}

	return &VerifyResult{
		Valid:  license.IsValidAt(s.now()),
		Status: license.Status,
	}, nil
}

func (s *service) findLicense(ctx context.Context, id uuid.UUID) (*models.License, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}
	license, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}
	return license, nil
}
