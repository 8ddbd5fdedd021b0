package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gigmesh/match-engine/internal/models"
	"github.com/gigmesh/match-engine/internal/queue"
	"github.com/gigmesh/match-engine/internal/store"
)

// AcceptInput carries the optional fields of a manual accept.
type AcceptInput struct {
	CompletionValue *float64 `json:"completion_value,omitempty"`
	ResponseNotes   string   `json:"response_notes,omitempty"`
}

// DeclineInput carries a manual decline. Reassign requests the sourcing
// service to route the opportunity to another freelancer.
type DeclineInput struct {
	ReasonCode    models.ReasonCode `json:"reason_code"`
	ResponseNotes string            `json:"response_notes,omitempty"`
	Reassign      bool              `json:"reassign,omitempty"`
}

// Responder applies manual accept and decline decisions to invitations.
type Responder struct {
	store  store.Store
	queue  queue.Queue
	logger *slog.Logger
}

// NewResponder creates a response processor. The queue may be nil when
// reassignment signalling is disabled.
func NewResponder(st store.Store, q queue.Queue, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{store: st, queue: q, logger: logger}
}

// Accept resolves an open invitation as accepted. Returns ErrConflict when
// the invitation is already terminal or was resolved concurrently.
func (r *Responder) Accept(ctx context.Context, freelancerID, invitationID string, input *AcceptInput) (*models.MatchInvitation, error) {
	inv, err := r.fetchOwned(ctx, freelancerID, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.Status.IsTerminal() {
		return nil, ErrConflict
	}

	from := inv.Status
	respondedAt := time.Now().UTC()
	inv.Status = models.StatusAccepted
	inv.RespondedAt = &respondedAt
	inv.Response = &models.MatchResponse{
		ResponseNotes:   input.ResponseNotes,
		CompletionValue: input.CompletionValue,
	}

	if err := r.transition(ctx, inv, from); err != nil {
		return nil, err
	}

	r.logger.Info("invitation accepted",
		"invitation_id", inv.ID,
		"freelancer_id", freelancerID,
	)
	return inv, nil
}

// Decline resolves an open invitation as declined, or as reassigned when the
// input requests routing the opportunity elsewhere. A reassigned outcome
// enqueues a signal for the sourcing service, which owns candidate selection.
func (r *Responder) Decline(ctx context.Context, freelancerID, invitationID string, input *DeclineInput) (*models.MatchInvitation, error) {
	if !models.ValidReasonCode(input.ReasonCode) {
		ve := &ValidationError{}
		ve.Add("reason_code", "must be one of capacity, skill, budget, timeline, other")
		return nil, ve
	}

	inv, err := r.fetchOwned(ctx, freelancerID, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.Status.IsTerminal() {
		return nil, ErrConflict
	}

	from := inv.Status
	respondedAt := time.Now().UTC()
	code := input.ReasonCode
	inv.Status = models.StatusDeclined
	if input.Reassign {
		inv.Status = models.StatusReassigned
	}
	inv.RespondedAt = &respondedAt
	inv.Response = &models.MatchResponse{
		ReasonCode:    &code,
		ReasonLabel:   code.Label(),
		ResponseNotes: input.ResponseNotes,
	}

	if err := r.transition(ctx, inv, from); err != nil {
		return nil, err
	}

	r.logger.Info("invitation declined",
		"invitation_id", inv.ID,
		"freelancer_id", freelancerID,
		"reason_code", code,
		"reassign", input.Reassign,
	)

	if input.Reassign && r.queue != nil {
		job := &models.ReassignmentJob{
			ID:           uuid.New().String(),
			InvitationID: inv.ID,
			FreelancerID: inv.FreelancerID,
			TargetID:     inv.TargetID,
			ReasonCode:   code,
			Notes:        input.ResponseNotes,
			CreatedAt:    time.Now().UTC(),
		}
		if err := r.queue.Enqueue(ctx, job); err != nil {
			// The decline already landed; losing the signal only delays
			// reassignment until someone notices. Log and move on.
			r.logger.Error("failed to enqueue reassignment job",
				"invitation_id", inv.ID,
				"error", err,
			)
		}
	}

	return inv, nil
}

func (r *Responder) fetchOwned(ctx context.Context, freelancerID, invitationID string) (*models.MatchInvitation, error) {
	inv, err := r.store.Invitations().Get(ctx, invitationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading invitation: %w", err)
	}
	// An invitation belonging to another freelancer is indistinguishable
	// from a missing one.
	if inv.FreelancerID != freelancerID {
		return nil, ErrNotFound
	}
	return inv, nil
}

func (r *Responder) transition(ctx context.Context, inv *models.MatchInvitation, from models.InvitationStatus) error {
	err := r.store.Invitations().TransitionStatus(ctx, inv, from)
	if errors.Is(err, store.ErrStatusConflict) {
		return ErrConflict
	}
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("applying response: %w", err)
	}
	return nil
}
