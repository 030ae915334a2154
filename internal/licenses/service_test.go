package licenses

import (
	"context"
	"testing"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/codeseek/codeseek-backend/pkg/enums"
	pkgerrors "github.com/codeseek/codeseek-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type stubLicenseRepo struct {
	created     *models.License
	findResult  *models.License
	findErr     error
	byKey       *models.License
	byKeyErr    error
	listRows    []licenseRow
	lastQuery   listQuery
	updated     *models.License
	statusSet   enums.LicenseStatus
	resetRows   int64
	deleteErr   error
	activations []models.Activation
}

func (s *stubLicenseRepo) Create(ctx context.Context, license *models.License) (*models.License, error) {
	s.created = license
	return license, nil
}

func (s *stubLicenseRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.findResult == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.findResult, nil
}

func (s *stubLicenseRepo) FindByKey(ctx context.Context, key string) (*models.License, error) {
	if s.byKeyErr != nil {
		return nil, s.byKeyErr
	}
	if s.byKey == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.byKey, nil
}

func (s *stubLicenseRepo) List(ctx context.Context, opts listQuery) ([]licenseRow, error) {
	s.lastQuery = opts
	return s.listRows, nil
}

func (s *stubLicenseRepo) Update(ctx context.Context, license *models.License) error {
	s.updated = license
	return nil
}

func (s *stubLicenseRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.LicenseStatus) error {
	s.statusSet = status
	return nil
}

func (s *stubLicenseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return s.deleteErr
}

func (s *stubLicenseRepo) ResetTx(tx *gorm.DB, id uuid.UUID) (int64, error) {
	return s.resetRows, nil
}

func (s *stubLicenseRepo) ActivationsForLicense(ctx context.Context, id uuid.UUID) ([]models.Activation, error) {
	return s.activations, nil
}

type stubUserRepo struct {
	user *models.User
	err  error
}

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

type stubProductRepo struct {
	product *models.Product
	err     error
}

func (s *stubProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.product == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.product, nil
}

type stubKeyGen struct {
	key string
	err error
}

func (s *stubKeyGen) GenerateKey(ctx context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.key, nil
}

type stubTxRunner struct{}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(repo *stubLicenseRepo, users *stubUserRepo, products *stubProductRepo) Service {
	svc, err := NewService(repo, users, products, &stubKeyGen{key: "AB12CD34EF56AB12CD34EF56AB12CD34"}, &stubTxRunner{})
	if err != nil {
		panic(err)
	}
	return svc
}

func TestCreateDefaultsMaxActivationsFromProduct(t *testing.T) {
	repo := &stubLicenseRepo{}
	svc := newTestService(repo,
		&stubUserRepo{user: &models.User{ID: uuid.New()}},
		&stubProductRepo{product: &models.Product{ID: uuid.New(), MaxActivations: 3}},
	)

	created, err := svc.Create(context.Background(), CreateInput{
		ProductID: uuid.New(),
		UserID:    uuid.New(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.MaxActivations != 3 {
		t.Fatalf("expected max activations 3, got %d", created.MaxActivations)
	}
	if created.Status != enums.LicenseStatusActive {
		t.Fatalf("expected active status, got %s", created.Status)
	}
	if created.Key == "" {
		t.Fatal("expected a generated key")
	}
}

func TestCreateUnknownProduct(t *testing.T) {
	svc := newTestService(&stubLicenseRepo{}, &stubUserRepo{user: &models.User{}}, &stubProductRepo{})

	_, err := svc.Create(context.Background(), CreateInput{ProductID: uuid.New(), UserID: uuid.New()})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateStatusRejectsUnknownEnum(t *testing.T) {
	repo := &stubLicenseRepo{findResult: &models.License{ID: uuid.New()}}
	svc := newTestService(repo, &stubUserRepo{}, &stubProductRepo{})

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), "paused")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateStatusAcceptsAnyTransition(t *testing.T) {
	repo := &stubLicenseRepo{findResult: &models.License{ID: uuid.New(), Status: enums.LicenseStatusExpired}}
	svc := newTestService(repo, &stubUserRepo{}, &stubProductRepo{})

	updated, err := svc.UpdateStatus(context.Background(), uuid.New(), "active")
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != enums.LicenseStatusActive {
		t.Fatalf("expected active, got %s", updated.Status)
	}
	if repo.statusSet != enums.LicenseStatusActive {
		t.Fatalf("expected repo write of active, got %s", repo.statusSet)
	}
}

func TestResetClearsActivationDate(t *testing.T) {
	activated := time.Now()
	repo := &stubLicenseRepo{
		findResult: &models.License{ID: uuid.New(), Status: enums.LicenseStatusActive, ActivatedOn: &activated},
		resetRows:  2,
	}
	svc := newTestService(repo, &stubUserRepo{}, &stubProductRepo{})

	result, err := svc.Reset(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if result.DeletedCount != 2 {
		t.Fatalf("expected 2 deleted activations, got %d", result.DeletedCount)
	}
	if result.License.ActivatedOn != nil {
		t.Fatal("expected activated_on cleared")
	}
	if result.License.Status != enums.LicenseStatusActive {
		t.Fatalf("reset must not touch status, got %s", result.License.Status)
	}
}

func TestVerifyUnknownKeyIsUniformInvalid(t *testing.T) {
	svc := newTestService(&stubLicenseRepo{}, &stubUserRepo{}, &stubProductRepo{})

	for _, key := range []string{"", "not-a-key", "AB12"} {
		_, err := svc.Verify(context.Background(), key)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
			t.Fatalf("key %q: expected not found, got %v", key, err)
		}
		if typed.Message() != "invalid license" {
			t.Fatalf("key %q: expected uniform message, got %q", key, typed.Message())
		}
	}
}

func TestVerifyExpiredLicenseReportsInvalid(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	repo := &stubLicenseRepo{byKey: &models.License{
		Status:    enums.LicenseStatusActive,
		ExpiresOn: &past,
	}}
	svc := newTestService(repo, &stubUserRepo{}, &stubProductRepo{})

	result, err := svc.Verify(context.Background(), "AB12CD34EF56AB12CD34EF56AB12CD34")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.Valid {
		t.Fatal("expected lapsed license to verify invalid")
	}
	if result.Status != enums.LicenseStatusActive {
		t.Fatalf("expected stored status to be reported, got %s", result.Status)
	}
}

func TestVerifyActiveLicense(t *testing.T) {
	repo := &stubLicenseRepo{byKey: &models.License{Status: enums.LicenseStatusActive}}
	svc := newTestService(repo, &stubUserRepo{}, &stubProductRepo{})

	result, err := svc.Verify(context.Background(), "AB12CD34EF56AB12CD34EF56AB12CD34")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.Valid {
		t.Fatal("expected valid license")
	}
}
