package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/codeseek/codeseek-backend/pkg/enums"
	"github.com/codeseek/codeseek-backend/pkg/logger"
	"github.com/codeseek/codeseek-backend/pkg/metrics"
	"github.com/codeseek/codeseek-backend/pkg/redis"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is one delivery handed to a handler: the stored row plus its
// decoded payload.
type Event struct {
	Log     *models.WebhookLog
	Payload Payload
}

// Handler applies the side effects of a single webhook event. A returned
// error settles the row as failed; it is never re-raised to the caller.
type Handler func(ctx context.Context, event Event) error

type routeKey struct {
	provider  string
	eventType string
}

type dispatcherRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookLog, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

// Dispatcher routes pending webhook rows to registered handlers and settles
// their status. A Redis guard keeps a retry from racing an in-flight run of
// the same row across instances.
type Dispatcher struct {
	repo     dispatcherRepository
	guard    redis.GuardStore
	routes   map[routeKey]Handler
	guardTTL time.Duration
	logg     *logger.Logger
	stats    *metrics.DispatchMetrics
}

// NewDispatcher builds an empty dispatcher; routes are added with Register.
func NewDispatcher(repo dispatcherRepository, guard redis.GuardStore, logg *logger.Logger, stats *metrics.DispatchMetrics, guardTTL time.Duration) (*Dispatcher, error) {
	if repo == nil {
		return nil, errors.New("webhook repository required")
	}
	if guard == nil {
		return nil, errors.New("guard store required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if guardTTL <= 0 {
		guardTTL = 5 * time.Minute
	}
	return &Dispatcher{
		repo:     repo,
		guard:    guard,
		routes:   make(map[routeKey]Handler),
		guardTTL: guardTTL,
		logg:     logg,
		stats:    stats,
	}, nil
}

// Register binds a handler to a (provider, event type) pair. Registration
// happens once at startup; the route table is read-only afterwards.
func (d *Dispatcher) Register(provider enums.WebhookProvider, eventType string, handler Handler) {
	d.routes[routeKey{provider: string(provider), eventType: eventType}] = handler
}

// Process runs one pending row to completion. Rows with no registered
// handler still settle as processed so unknown events never wedge the log.
// The returned error covers infrastructure failures only; handler errors
// settle the row as failed and return nil.
func (d *Dispatcher) Process(ctx context.Context, webhookID uuid.UUID) error {
	ctx = d.logg.WithWebhookID(ctx, webhookID.String())

	guardKey := d.guard.GuardKey("webhook", webhookID.String())
	acquired, err := d.guard.SetNX(ctx, guardKey, "1", d.guardTTL)
	if err != nil {
		return fmt.Errorf("acquire dispatch guard: %w", err)
	}
	if !acquired {
		d.logg.Info(ctx, "dispatch already in flight, skipping")
		return nil
	}
	defer func() {
		if err := d.guard.Del(context.WithoutCancel(ctx), guardKey); err != nil {
			d.logg.Warn(d.logg.WithField(ctx, "guard_error", err.Error()), "release dispatch guard failed")
		}
	}()

	log, err := d.repo.FindByID(ctx, webhookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			d.logg.Warn(ctx, "webhook row vanished before dispatch")
			return nil
		}
		return fmt.Errorf("load webhook: %w", err)
	}
	if log.Status != enums.WebhookStatusPending {
		d.logg.Info(d.logg.WithField(ctx, "status", log.Status), "webhook already settled, skipping")
		return nil
	}

	ctx = d.logg.WithFields(ctx, map[string]any{
		"provider":   log.Provider,
		"event_type": log.EventType,
	})
	d.logg.Info(ctx, "processing webhook")

	start := time.Now()
	handlerErr := d.run(ctx, log)
	d.stats.ObserveDuration(log.Provider, time.Since(start))

	if handlerErr != nil {
		d.logg.Error(ctx, "webhook handler failed", handlerErr)
		d.stats.IncFailed(log.Provider, log.EventType)
		if err := d.repo.MarkFailed(ctx, log.ID, handlerErr.Error()); err != nil {
			return fmt.Errorf("settle webhook as failed: %w", err)
		}
		return nil
	}

	if err := d.repo.MarkProcessed(ctx, log.ID); err != nil {
		return fmt.Errorf("settle webhook as processed: %w", err)
	}
	d.stats.IncProcessed(log.Provider, log.EventType)
	d.logg.Info(ctx, "webhook processed")
	return nil
}

func (d *Dispatcher) run(ctx context.Context, log *models.WebhookLog) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()

	handler, ok := d.routes[routeKey{provider: log.Provider, eventType: log.EventType}]
	if !ok {
		d.logg.Info(ctx, "no handler registered for event, settling as processed")
		return nil
	}
	return handler(ctx, Event{Log: log, Payload: parsePayload(log.Payload)})
}
