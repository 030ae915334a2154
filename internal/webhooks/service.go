package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/codeseek/codeseek-backend/pkg/enums"
	pkgerrors "github.com/codeseek/codeseek-backend/pkg/errors"
	"github.com/codeseek/codeseek-backend/pkg/logger"
	pkgpagination "github.com/codeseek/codeseek-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type webhooksRepository interface {
	Create(ctx context.Context, log *models.WebhookLog) (*models.WebhookLog, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookLog, error)
	ResetForRetry(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, opts listQuery) ([]models.WebhookLog, error)
	Stats(ctx context.Context, since time.Time) (int64, int64, []StatusBreakdown, error)
	ClearAll(ctx context.Context) (int64, error)
}

// Enqueuer hands a persisted webhook log to the async dispatch pipeline.
type Enqueuer interface {
	Enqueue(ctx context.Context, webhookID uuid.UUID) error
}

// Service exposes webhook ingestion and the admin log surface.
type Service interface {
	Ingest(ctx context.Context, provider string, body []byte) (*IngestResult, error)
	Retry(ctx context.Context, id uuid.UUID) (*models.WebhookLog, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Stats(ctx context.Context) (*StatsResult, error)
	Clear(ctx context.Context) (int64, error)
}

// IngestResult acknowledges receipt. Processing happens after the ack.
type IngestResult struct {
	WebhookID uuid.UUID           `json:"webhookId"`
	Status    enums.WebhookStatus `json:"status"`
}

// ListParams filters the admin log listing.
type ListParams struct {
	Provider  string
	Status    string
	EventType string
	Limit     int
	Cursor    string
}

// ListResult is one page of log rows plus the cursor for the next page.
type ListResult struct {
	Items  []models.WebhookLog `json:"items"`
	Cursor string              `json:"cursor,omitempty"`
}

// StatsResult is the admin rollup of the webhook log.
type StatsResult struct {
	Total       int64             `json:"total"`
	Last24Hours int64             `json:"last24Hours"`
	Breakdown   []StatusBreakdown `json:"breakdown"`
}

type service struct {
	repo  webhooksRepository
	queue Enqueuer
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds the webhook service. The enqueuer may be nil only in
// read-only deployments; ingestion then records rows without dispatching.
func NewService(repo webhooksRepository, queue Enqueuer, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.New("webhook repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &service{
		repo:  repo,
		queue: queue,
		logg:  logg,
		now:   time.Now,
	}, nil
}

// Ingest persists the raw delivery as a pending row, then hands it to the
// dispatch queue. The row is durable before any processing runs, so a crash
// after the ack loses nothing.
func (s *service) Ingest(ctx context.Context, provider string, body []byte) (*IngestResult, error) {
	if provider == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider is required")
	}

	payload := normalizePayload(body)
	log := &models.WebhookLog{
		Provider:  provider,
		EventType: extractEventType(payload),
		Payload:   payload,
		Status:    enums.WebhookStatusPending,
	}

	created, err := s.repo.Create(ctx, log)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook")
	}

	if err := s.dispatch(ctx, created.ID); err != nil {
		return nil, err
	}

	return &IngestResult{WebhookID: created.ID, Status: created.Status}, nil
}

// Retry re-queues a failed delivery. Rows that already processed are
// rejected so a replay cannot double-apply side effects.
func (s *service) Retry(ctx context.Context, id uuid.UUID) (*models.WebhookLog, error) {
	log, err := s.findLog(ctx, id)
	if err != nil {
		return nil, err
	}
	if log.Status == enums.WebhookStatusProcessed {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "webhook has already been processed")
	}

	if log.Status != enums.WebhookStatusPending {
		reset, err := s.repo.ResetForRetry(ctx, id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset webhook for retry")
		}
		if !reset {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "webhook status changed concurrently")
		}
		log.Status = enums.WebhookStatusPending
		log.ErrorMessage = nil
	}

	if err := s.dispatch(ctx, id); err != nil {
		return nil, err
	}
	return log, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		provider:  params.Provider,
		eventType: params.EventType,
		limit:     pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Status != "" {
		status, err := enums.ParseWebhookStatus(params.Status)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid status is required (pending, processed, failed)")
		}
		query.status = status
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list webhooks")
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			CreatedAt: rows[limit].CreatedAt,
			ID:        rows[limit].ID,
		})
		rows = rows[:limit]
	}

	return &ListResult{Items: rows, Cursor: nextCursor}, nil
}

func (s *service) Stats(ctx context.Context) (*StatsResult, error) {
	total, recent, breakdown, err := s.repo.Stats(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook stats")
	}
	return &StatsResult{
		Total:       total,
		Last24Hours: recent,
		Breakdown:   breakdown,
	}, nil
}

func (s *service) Clear(ctx context.Context) (int64, error) {
	deleted, err := s.repo.ClearAll(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear webhooks")
	}
	return deleted, nil
}

// dispatch hands the row to the queue. A saturated queue surfaces as a
// dependency error so the provider redelivers; the pending row already
// written is settled whenever a later delivery or retry runs.
func (s *service) dispatch(ctx context.Context, id uuid.UUID) error {
	if s.queue == nil {
		return nil
	}
	if err := s.queue.Enqueue(ctx, id); err != nil {
		scoped := s.logg.WithWebhookID(ctx, id.String())
		s.logg.Warn(s.logg.WithField(scoped, "enqueue_error", err.Error()), "webhook enqueue failed, row stays pending")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue webhook for processing")
	}
	return nil
}

func (s *service) findLog(ctx context.Context, id uuid.UUID) (*models.WebhookLog, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook id is required")
	}
	log, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "webhook not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup webhook")
	}
	return log, nil
}

// normalizePayload guarantees the stored payload is valid JSON. Non-JSON
// bodies are wrapped so the raw delivery is never lost.
func normalizePayload(body []byte) json.RawMessage {
	if len(body) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	wrapped, err := json.Marshal(map[string]string{"raw": string(body)})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return wrapped
}

// extractEventType reads the event name from the payload, checking the
// field names providers actually use, in order.
func extractEventType(payload json.RawMessage) string {
	var fields struct {
		Type       string `json:"type"`
		SnakeEvent string `json:"event_type"`
		CamelEvent string `json:"eventType"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return "unknown"
	}
	switch {
	case fields.Type != "":
		return fields.Type
	case fields.SnakeEvent != "":
		return fields.SnakeEvent
	case fields.CamelEvent != "":
		return fields.CamelEvent
	default:
		return "unknown"
	}
}
