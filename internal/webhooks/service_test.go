package webhooks

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/codeseek/codeseek-backend/pkg/enums"
	pkgerrors "github.com/codeseek/codeseek-backend/pkg/errors"
	"github.com/codeseek/codeseek-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type stubWebhookRepo struct {
	created  *models.WebhookLog
	found    *models.WebhookLog
	resetOK  bool
	resetHit bool
	rows     []models.WebhookLog
	cleared  int64
}

func (s *stubWebhookRepo) Create(ctx context.Context, log *models.WebhookLog) (*models.WebhookLog, error) {
	log.ID = uuid.New()
	s.created = log
	return log, nil
}

func (s *stubWebhookRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookLog, error) {
	if s.found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.found, nil
}

func (s *stubWebhookRepo) ResetForRetry(ctx context.Context, id uuid.UUID) (bool, error) {
	s.resetHit = true
	return s.resetOK, nil
}

func (s *stubWebhookRepo) List(ctx context.Context, opts listQuery) ([]models.WebhookLog, error) {
	return s.rows, nil
}

func (s *stubWebhookRepo) Stats(ctx context.Context, since time.Time) (int64, int64, []StatusBreakdown, error) {
	return 10, 3, []StatusBreakdown{{Provider: "chargebee", Status: enums.WebhookStatusProcessed, Count: 7}}, nil
}

func (s *stubWebhookRepo) ClearAll(ctx context.Context) (int64, error) {
	return s.cleared, nil
}

type stubEnqueuer struct {
	ids []uuid.UUID
	err error
}

func (s *stubEnqueuer) Enqueue(ctx context.Context, webhookID uuid.UUID) error {
	if s.err != nil {
		return s.err
	}
	s.ids = append(s.ids, webhookID)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard})
}

func newTestWebhookService(repo *stubWebhookRepo, queue *stubEnqueuer) Service {
	svc, err := NewService(repo, queue, testLogger())
	if err != nil {
		panic(err)
	}
	return svc
}

func TestIngestRecordsPendingAndEnqueues(t *testing.T) {
	repo := &stubWebhookRepo{}
	queue := &stubEnqueuer{}
	svc := newTestWebhookService(repo, queue)

	result, err := svc.Ingest(context.Background(), "chargebee", []byte(`{"type":"invoice.payment_succeeded"}`))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Status != enums.WebhookStatusPending {
		t.Fatalf("ack must report pending, got %s", result.Status)
	}
	if repo.created.EventType != "invoice.payment_succeeded" {
		t.Fatalf("unexpected event type %q", repo.created.EventType)
	}
	if len(queue.ids) != 1 || queue.ids[0] != result.WebhookID {
		t.Fatalf("expected the persisted row to be enqueued, got %v", queue.ids)
	}
}

func TestIngestEventTypePrecedence(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"type wins", `{"type":"a","event_type":"b","eventType":"c"}`, "a"},
		{"snake next", `{"event_type":"b","eventType":"c"}`, "b"},
		{"camel last", `{"eventType":"c"}`, "c"},
		{"empty object", `{}`, "unknown"},
		{"empty body", ``, "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubWebhookRepo{}
			svc := newTestWebhookService(repo, &stubEnqueuer{})
			if _, err := svc.Ingest(context.Background(), "chargebee", []byte(tc.body)); err != nil {
				t.Fatalf("ingest: %v", err)
			}
			if repo.created.EventType != tc.want {
				t.Fatalf("expected event type %q, got %q", tc.want, repo.created.EventType)
			}
		})
	}
}

func TestIngestWrapsNonJSONBody(t *testing.T) {
	repo := &stubWebhookRepo{}
	svc := newTestWebhookService(repo, &stubEnqueuer{})

	if _, err := svc.Ingest(context.Background(), "custom", []byte("plain text body")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if string(repo.created.Payload) != `{"raw":"plain text body"}` {
		t.Fatalf("expected wrapped payload, got %s", repo.created.Payload)
	}
	if repo.created.EventType != "unknown" {
		t.Fatalf("expected unknown event type, got %q", repo.created.EventType)
	}
}

func TestIngestRequiresProvider(t *testing.T) {
	svc := newTestWebhookService(&stubWebhookRepo{}, &stubEnqueuer{})

	_, err := svc.Ingest(context.Background(), "", []byte(`{}`))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIngestSaturatedQueueSurfacesDependencyError(t *testing.T) {
	repo := &stubWebhookRepo{}
	queue := &stubEnqueuer{err: errors.New("queue full")}
	svc := newTestWebhookService(repo, queue)

	_, err := svc.Ingest(context.Background(), "chargebee", []byte(`{}`))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error when the queue is full, got %v", err)
	}
	if repo.created == nil {
		t.Fatal("row must be persisted before the enqueue attempt")
	}
}

func TestRetryRejectsProcessedRow(t *testing.T) {
	repo := &stubWebhookRepo{found: &models.WebhookLog{ID: uuid.New(), Status: enums.WebhookStatusProcessed}}
	svc := newTestWebhookService(repo, &stubEnqueuer{})

	_, err := svc.Retry(context.Background(), repo.found.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidState {
		t.Fatalf("expected invalid state for a processed row, got %v", err)
	}
}

func TestRetryResetsFailedRowAndEnqueues(t *testing.T) {
	message := "handler blew up"
	repo := &stubWebhookRepo{
		found:   &models.WebhookLog{ID: uuid.New(), Status: enums.WebhookStatusFailed, ErrorMessage: &message},
		resetOK: true,
	}
	queue := &stubEnqueuer{}
	svc := newTestWebhookService(repo, queue)

	log, err := svc.Retry(context.Background(), repo.found.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !repo.resetHit {
		t.Fatal("expected the failed row to be reset")
	}
	if log.Status != enums.WebhookStatusPending || log.ErrorMessage != nil {
		t.Fatalf("expected pending row with cleared error, got %s / %v", log.Status, log.ErrorMessage)
	}
	if len(queue.ids) != 1 {
		t.Fatalf("expected one enqueue, got %d", len(queue.ids))
	}
}

func TestRetryConflictWhenResetLosesRace(t *testing.T) {
	repo := &stubWebhookRepo{
		found:   &models.WebhookLog{ID: uuid.New(), Status: enums.WebhookStatusFailed},
		resetOK: false,
	}
	svc := newTestWebhookService(repo, &stubEnqueuer{})

	_, err := svc.Retry(context.Background(), repo.found.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRetryUnknownWebhook(t *testing.T) {
	svc := newTestWebhookService(&stubWebhookRepo{}, &stubEnqueuer{})

	_, err := svc.Retry(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc := newTestWebhookService(&stubWebhookRepo{}, &stubEnqueuer{})

	_, err := svc.List(context.Background(), ListParams{Status: "queued"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStatsShape(t *testing.T) {
	svc := newTestWebhookService(&stubWebhookRepo{}, &stubEnqueuer{})

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 10 || stats.Last24Hours != 3 || len(stats.Breakdown) != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
