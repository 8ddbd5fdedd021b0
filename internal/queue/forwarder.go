package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gigmesh/match-engine/internal/models"
)

// Forwarder drains the reassignment queue and delivers each job to the
// sourcing service. Failed deliveries are nacked and retried on a later pass.
type Forwarder struct {
	queue    Queue
	endpoint string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewForwarder creates a reassignment forwarder that POSTs jobs to endpoint.
func NewForwarder(q Queue, endpoint string, interval time.Duration, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		queue:    q,
		endpoint: endpoint,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic forwarding loop. It blocks until the context is
// cancelled or Stop is called.
func (f *Forwarder) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = true
	f.stopChan = make(chan struct{})
	f.mu.Unlock()

	f.logger.Info("starting reassignment forwarder",
		"endpoint", f.endpoint,
		"interval", f.interval,
	)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("reassignment forwarder stopped by context")
			return ctx.Err()
		case <-f.stopChan:
			f.logger.Info("reassignment forwarder stopped")
			return nil
		case <-ticker.C:
			if _, err := f.Drain(ctx); err != nil {
				f.logger.Error("forwarding pass failed", "error", err)
			}
		}
	}
}

// Stop stops the forwarder.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		close(f.stopChan)
		f.running = false
	}
}

// Drain forwards queued jobs until the queue is empty or a delivery fails.
// Returns the number of jobs forwarded.
func (f *Forwarder) Drain(ctx context.Context) (int, error) {
	forwarded := 0
	for {
		job, err := f.queue.Dequeue(ctx)
		if errors.Is(err, ErrNoJobs) {
			return forwarded, nil
		}
		if err != nil {
			return forwarded, err
		}

		if err := f.forward(ctx, job); err != nil {
			f.logger.Warn("forwarding reassignment failed",
				"job_id", job.ID,
				"invitation_id", job.InvitationID,
				"error", err,
			)
			if nackErr := f.queue.Nack(ctx, job.ID); nackErr != nil {
				f.logger.Error("nacking job", "job_id", job.ID, "error", nackErr)
			}
			// Back off the whole pass; the endpoint is likely down.
			return forwarded, nil
		}

		if err := f.queue.Ack(ctx, job.ID); err != nil {
			f.logger.Error("acking job", "job_id", job.ID, "error", err)
			return forwarded, err
		}
		forwarded++
	}
}

// forward POSTs a single job to the sourcing endpoint.
func (f *Forwarder) forward(ctx context.Context, job *models.ReassignmentJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting reassignment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sourcing endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
