package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gigmesh/match-engine/internal/models"
	"github.com/gigmesh/match-engine/internal/store"
)

// evaluateBatchSize caps how many pending invitations one tick loads.
const evaluateBatchSize = 200

// Evaluator periodically re-evaluates pending invitations so suppressed and
// deferred ones are picked up when quiet hours end, snoozes lapse, or daily
// limits reset at local midnight.
type Evaluator struct {
	store     store.Store
	scheduler *Scheduler
	interval  time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewEvaluator creates a pending-invitation evaluator.
func NewEvaluator(st store.Store, scheduler *Scheduler, interval time.Duration, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		store:     st,
		scheduler: scheduler,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the periodic evaluation loop. It blocks until the context is
// cancelled or Stop is called.
func (e *Evaluator) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.mu.Unlock()

	e.logger.Info("starting pending evaluator", "interval", e.interval)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("pending evaluator stopped by context")
			return ctx.Err()
		case <-e.stopChan:
			e.logger.Info("pending evaluator stopped")
			return nil
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				e.logger.Error("evaluation tick failed", "error", err)
			}
		}
	}
}

// Stop stops the evaluator.
func (e *Evaluator) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		close(e.stopChan)
		e.running = false
	}
}

// Tick runs one evaluation pass over pending invitations.
func (e *Evaluator) Tick(ctx context.Context) error {
	pending := []models.InvitationStatus{models.StatusPending}
	invitations, err := e.store.Invitations().ListByStatus(ctx, pending, time.Now(), evaluateBatchSize)
	if err != nil {
		return err
	}

	for _, inv := range invitations {
		if _, err := e.scheduler.Process(ctx, inv); err != nil {
			e.logger.Error("processing pending invitation",
				"invitation_id", inv.ID,
				"error", err,
			)
		}
	}
	return nil
}
