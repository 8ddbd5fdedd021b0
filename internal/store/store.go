// Package store provides database access interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/gigmesh/match-engine/internal/models"
)

// Common errors returned by store implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStatusConflict is returned when a guarded status transition finds
	// the stored status no longer matches the caller's known prior status.
	ErrStatusConflict = errors.New("invitation status changed concurrently")
)

// ListOptions controls invitation listing.
type ListOptions struct {
	// IncludeHistorical includes terminal invitations in the result.
	IncludeHistorical bool
	// Page is 1-based; zero means the first page.
	Page int
	// PageSize caps the page; zero applies the store default.
	PageSize int
}

// Pagination describes the page returned by a list call.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// PreferenceStore defines operations for freelancer match preferences.
type PreferenceStore interface {
	// Get retrieves the preference for a freelancer. Returns the default
	// preference when the freelancer has never configured matching.
	Get(ctx context.Context, freelancerID string) (*models.MatchPreference, error)
	// Upsert persists the full preference record.
	Upsert(ctx context.Context, pref *models.MatchPreference) error
}

// InvitationStore defines operations for match invitations.
type InvitationStore interface {
	// Create persists a new invitation.
	Create(ctx context.Context, inv *models.MatchInvitation) error
	// Get retrieves an invitation by ID. Returns ErrNotFound if missing.
	Get(ctx context.Context, id string) (*models.MatchInvitation, error)
	// ListByFreelancer retrieves a page of invitations for a freelancer,
	// open ones only unless opts.IncludeHistorical is set.
	ListByFreelancer(ctx context.Context, freelancerID string, opts ListOptions) ([]*models.MatchInvitation, *Pagination, error)
	// ListByStatus retrieves invitations in any of the given statuses
	// created before the cutoff, oldest first, capped at limit. A limit
	// below one applies the store's default cap.
	ListByStatus(ctx context.Context, statuses []models.InvitationStatus, createdBefore time.Time, limit int) ([]*models.MatchInvitation, error)
	// ListPending retrieves every pending invitation for one freelancer,
	// oldest first, uncapped.
	ListPending(ctx context.Context, freelancerID string) ([]*models.MatchInvitation, error)
	// ListResolved retrieves all terminal invitations for a freelancer.
	ListResolved(ctx context.Context, freelancerID string) ([]*models.MatchInvitation, error)
	// CountNotifiedSince counts invitations notified for a freelancer at or
	// after the given instant, whatever their current status.
	CountNotifiedSince(ctx context.Context, freelancerID string, since time.Time) (int, error)
	// CountOpen counts pending and notified invitations for a freelancer.
	CountOpen(ctx context.Context, freelancerID string) (pending int, notified int, err error)
	// TransitionStatus writes the invitation guarded by the caller's known
	// prior status. Returns ErrStatusConflict when the stored status has
	// moved on, ErrNotFound when the invitation does not exist.
	TransitionStatus(ctx context.Context, inv *models.MatchInvitation, from models.InvitationStatus) error
}

// Store is the main interface for database operations.
type Store interface {
	// Preferences returns the PreferenceStore.
	Preferences() PreferenceStore
	// Invitations returns the InvitationStore.
	Invitations() InvitationStore

	// WithTx executes the given function within a database transaction.
	// If the function returns an error the transaction is rolled back,
	// otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Close closes the database connection.
	Close() error
}
