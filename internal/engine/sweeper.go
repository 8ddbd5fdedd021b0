package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gigmesh/match-engine/internal/models"
	"github.com/gigmesh/match-engine/internal/store"
)

// sweepBatchSize caps how many invitations one sweep pass loads.
const sweepBatchSize = 200

// Sweeper periodically expires unanswered invitations whose age exceeds the
// response TTL. Re-running over already-terminal invitations is a no-op.
type Sweeper struct {
	store       store.Store
	responseTTL time.Duration
	interval    time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewSweeper creates an expiry sweeper.
func NewSweeper(st store.Store, responseTTL, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:       st,
		responseTTL: responseTTL,
		interval:    interval,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the periodic sweep loop. It blocks until the context is
// cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("starting expiry sweeper",
		"response_ttl", s.responseTTL,
		"interval", s.interval,
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped by context")
			return ctx.Err()
		case <-s.stopChan:
			s.logger.Info("expiry sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Stop stops the sweeper.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		close(s.stopChan)
		s.running = false
	}
}

// Sweep runs one pass, transitioning overdue open invitations to expired.
// Returns the number of invitations expired.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.responseTTL)
	open := []models.InvitationStatus{models.StatusPending, models.StatusNotified}

	invitations, err := s.store.Invitations().ListByStatus(ctx, open, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, inv := range invitations {
		from := inv.Status
		inv.Status = models.StatusExpired
		err := s.store.Invitations().TransitionStatus(ctx, inv, from)
		if errors.Is(err, store.ErrStatusConflict) {
			// Resolved between the scan and the write. Nothing to do.
			continue
		}
		if err != nil {
			s.logger.Error("expiring invitation", "invitation_id", inv.ID, "error", err)
			continue
		}
		expired++
	}

	if expired > 0 {
		s.logger.Info("expired unanswered invitations", "count", expired)
	}
	return expired, nil
}
