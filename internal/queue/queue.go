package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/config"
	"github.com/codeseek/codeseek-backend/pkg/logger"
	"github.com/codeseek/codeseek-backend/pkg/metrics"
	"github.com/google/uuid"
)

// Processor consumes one queued webhook id.
type Processor interface {
	Process(ctx context.Context, webhookID uuid.UUID) error
}

// ErrClosed is returned by Enqueue once shutdown has started.
var ErrClosed = errors.New("dispatch queue is closed")

// ErrFull is returned when the buffer stays full past the enqueue timeout.
// The caller's row is already durable, so a full queue costs a retry, not
// a lost delivery.
var ErrFull = errors.New("dispatch queue is full")

// Queue is the bounded in-process pipeline between webhook ingestion and
// the dispatcher. Backpressure is explicit: a fixed buffer, a bounded wait
// to enqueue, and a drain deadline on shutdown.
type Queue struct {
	jobs           chan uuid.UUID
	processor      Processor
	workers        int
	enqueueTimeout time.Duration
	logg           *logger.Logger
	stats          *metrics.DispatchMetrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New builds a stopped queue; call Start to spawn the workers.
func New(processor Processor, cfg config.WebhookConfig, logg *logger.Logger, stats *metrics.DispatchMetrics) (*Queue, error) {
	if processor == nil {
		return nil, errors.New("processor required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 5 * time.Second
	}
	return &Queue{
		jobs:           make(chan uuid.UUID, cfg.QueueSize),
		processor:      processor,
		workers:        cfg.Workers,
		enqueueTimeout: cfg.EnqueueTimeout,
		logg:           logg,
		stats:          stats,
	}, nil
}

// Start spawns the worker pool. Workers run until Stop closes the buffer,
// then finish whatever is left in it. The supplied context scopes the
// processing work, not the workers' lifetime.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.logg.Info(q.logg.WithField(ctx, "workers", q.workers), "dispatch queue started")
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	scoped := q.logg.WithField(ctx, "worker", id)
	for webhookID := range q.jobs {
		q.stats.SetQueueDepth(len(q.jobs))
		if err := q.processor.Process(scoped, webhookID); err != nil {
			q.logg.Error(q.logg.WithWebhookID(scoped, webhookID.String()), "webhook dispatch failed", err)
		}
	}
}

// Enqueue hands a webhook id to the pool, waiting up to the configured
// timeout for buffer space.
func (q *Queue) Enqueue(ctx context.Context, webhookID uuid.UUID) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	timer := time.NewTimer(q.enqueueTimeout)
	defer timer.Stop()

	select {
	case q.jobs <- webhookID:
		q.stats.SetQueueDepth(len(q.jobs))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue webhook: %w", ctx.Err())
	case <-timer.C:
		return ErrFull
	}
}

// Stop closes the queue to new work and waits for the workers to drain the
// buffer, up to the context deadline. Unprocessed rows stay pending in the
// database and are picked up by a later retry.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logg.Info(ctx, "dispatch queue drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch queue drain: %w", ctx.Err())
	}
}
