// Package queue provides the reassignment request queue interfaces and
// implementations.
package queue

import (
	"context"
	"errors"

	"github.com/gigmesh/match-engine/internal/models"
)

// Common errors returned by queue operations.
var (
	// ErrNoJobs is returned when no jobs are available in the queue.
	ErrNoJobs = errors.New("no jobs available")
	// ErrJobNotFound is returned when a job cannot be found.
	ErrJobNotFound = errors.New("job not found")
)

// Queue defines the interface for reassignment job queue operations.
type Queue interface {
	// Enqueue adds a new reassignment job to the queue.
	// The job is serialized to JSON for storage.
	Enqueue(ctx context.Context, job *models.ReassignmentJob) error

	// Dequeue retrieves and locks the next available job from the queue.
	// Returns ErrNoJobs if no jobs are available.
	Dequeue(ctx context.Context) (*models.ReassignmentJob, error)

	// Ack acknowledges successful forwarding of a job, removing it from the
	// queue.
	Ack(ctx context.Context, jobID string) error

	// Nack indicates that forwarding failed, making the job available again.
	Nack(ctx context.Context, jobID string) error
}
