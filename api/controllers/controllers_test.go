package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/codeseek/codeseek-backend/internal/activations"
	"github.com/codeseek/codeseek-backend/internal/licenses"
	"github.com/codeseek/codeseek-backend/internal/webhooks"
	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/codeseek/codeseek-backend/pkg/enums"
	pkgerrors "github.com/codeseek/codeseek-backend/pkg/errors"
	"github.com/codeseek/codeseek-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard})
}

type stubLicenseService struct {
	verifyResult *licenses.VerifyResult
	verifyErr    error
}

func (s *stubLicenseService) Create(ctx context.Context, input licenses.CreateInput) (*models.License, error) {
	return nil, nil
}

func (s *stubLicenseService) Get(ctx context.Context, id uuid.UUID) (*licenses.Detail, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
}

func (s *stubLicenseService) List(ctx context.Context, params licenses.ListParams) (*licenses.ListResult, error) {
	return &licenses.ListResult{}, nil
}

func (s *stubLicenseService) Update(ctx context.Context, id uuid.UUID, input licenses.UpdateInput) (*models.License, error) {
	return nil, nil
}

func (s *stubLicenseService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.License, error) {
	return nil, nil
}

func (s *stubLicenseService) Reset(ctx context.Context, id uuid.UUID) (*licenses.ResetResult, error) {
	return nil, nil
}

func (s *stubLicenseService) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubLicenseService) Verify(ctx context.Context, key string) (*licenses.VerifyResult, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return s.verifyResult, nil
}

type stubWebhookService struct {
	ingestResult *webhooks.IngestResult
	ingestErr    error
	provider     string
	body         []byte
}

func (s *stubWebhookService) Ingest(ctx context.Context, provider string, body []byte) (*webhooks.IngestResult, error) {
	s.provider = provider
	s.body = body
	if s.ingestErr != nil {
		return nil, s.ingestErr
	}
	return s.ingestResult, nil
}

func (s *stubWebhookService) Retry(ctx context.Context, id uuid.UUID) (*models.WebhookLog, error) {
	return nil, nil
}

func (s *stubWebhookService) List(ctx context.Context, params webhooks.ListParams) (*webhooks.ListResult, error) {
	return &webhooks.ListResult{}, nil
}

func (s *stubWebhookService) Stats(ctx context.Context) (*webhooks.StatsResult, error) {
	return &webhooks.StatsResult{}, nil
}

func (s *stubWebhookService) Clear(ctx context.Context) (int64, error) { return 0, nil }

type stubActivationService struct {
	created *models.Activation
	err     error
}

func (s *stubActivationService) AddActivation(ctx context.Context, licenseID uuid.UUID, input activations.AddInput) (*models.Activation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.created, nil
}

func (s *stubActivationService) RemoveActivation(ctx context.Context, licenseID, activationID uuid.UUID) error {
	return s.err
}

func decodeError(t *testing.T, body []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.Code
}

func TestLicenseVerifyValidKey(t *testing.T) {
	svc := &stubLicenseService{verifyResult: &licenses.VerifyResult{Valid: true, Status: enums.LicenseStatusActive}}
	router := chi.NewRouter()
	router.Get("/license/verify/{key}", LicenseVerify(svc, testLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/license/verify/AB12CD34", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var envelope struct {
		Data licenses.VerifyResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !envelope.Data.Valid || envelope.Data.Status != enums.LicenseStatusActive {
		t.Fatalf("unexpected verify payload %+v", envelope.Data)
	}
}

func TestLicenseVerifyUnknownKeyIs404(t *testing.T) {
	svc := &stubLicenseService{verifyErr: pkgerrors.New(pkgerrors.CodeNotFound, "invalid license")}
	router := chi.NewRouter()
	router.Get("/license/verify/{key}", LicenseVerify(svc, testLogger()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/license/verify/bogus", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := decodeError(t, rec.Body.Bytes()); code == "" {
		t.Fatal("expected an error code in the envelope")
	}
}

func TestWebhookIngestAcksWithWebhookID(t *testing.T) {
	webhookID := uuid.New()
	svc := &stubWebhookService{ingestResult: &webhooks.IngestResult{WebhookID: webhookID, Status: enums.WebhookStatusPending}}
	router := chi.NewRouter()
	router.Post("/webhooks/{provider}", WebhookIngest(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/chargebee", strings.NewReader(`{"type":"invoice.payment_succeeded"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.provider != "chargebee" {
		t.Fatalf("expected provider from the path, got %q", svc.provider)
	}
	var envelope struct {
		Data struct {
			WebhookID uuid.UUID `json:"webhookId"`
			Status    string    `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.WebhookID != webhookID || envelope.Data.Status != "pending" {
		t.Fatalf("unexpected ack %+v", envelope.Data)
	}
}

func TestWebhookIngestSaturatedQueueIs503(t *testing.T) {
	svc := &stubWebhookService{ingestErr: pkgerrors.New(pkgerrors.CodeDependency, "queue webhook for processing")}
	router := chi.NewRouter()
	router.Post("/webhooks/{provider}", WebhookIngest(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/chargebee", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestActivationCreateRejectsBadBody(t *testing.T) {
	svc := &stubActivationService{}
	router := chi.NewRouter()
	router.Post("/licenses/{id}/activations", ActivationCreate(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/licenses/"+uuid.NewString()+"/activations", strings.NewReader(`{"ipAddress":"1.2.3.4"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing domain, got %d", rec.Code)
	}
}

func TestActivationCreateRejectsBadLicenseID(t *testing.T) {
	svc := &stubActivationService{}
	router := chi.NewRouter()
	router.Post("/licenses/{id}/activations", ActivationCreate(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/licenses/not-a-uuid/activations", strings.NewReader(`{"domain":"example.com"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed id, got %d", rec.Code)
	}
}

func TestActivationCreateQuotaIs403(t *testing.T) {
	svc := &stubActivationService{err: pkgerrors.New(pkgerrors.CodeQuotaExceeded, "activation limit of 3 reached for this license")}
	router := chi.NewRouter()
	router.Post("/licenses/{id}/activations", ActivationCreate(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/licenses/"+uuid.NewString()+"/activations", strings.NewReader(`{"domain":"example.com"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 at the quota, got %d", rec.Code)
	}
}
