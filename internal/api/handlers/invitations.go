package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gigmesh/match-engine/internal/api/middleware"
	"github.com/gigmesh/match-engine/internal/auth"
	"github.com/gigmesh/match-engine/internal/engine"
	"github.com/gigmesh/match-engine/internal/models"
	"github.com/gigmesh/match-engine/internal/store"
)

// InvitationsHandler accepts scored candidates from the sourcing service.
type InvitationsHandler struct {
	store     store.Store
	scheduler *engine.Scheduler
	logger    *slog.Logger
}

// NewInvitationsHandler creates a new invitations handler.
func NewInvitationsHandler(st store.Store, scheduler *engine.Scheduler, logger *slog.Logger) *InvitationsHandler {
	return &InvitationsHandler{
		store:     st,
		scheduler: scheduler,
		logger:    logger,
	}
}

// CreateInvitationRequest is the POST invitations body.
type CreateInvitationRequest struct {
	FreelancerID string  `json:"freelancer_id"`
	TargetID     string  `json:"target_id"`
	Score        int     `json:"score"`
	ProposedRate float64 `json:"proposed_rate"`
}

// Create handles POST /v1/invitations. Sourcing service tokens only. The new
// invitation is born pending and evaluated for notification immediately.
func (h *InvitationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if middleware.GetScope(r.Context()) != auth.ScopeSourcing {
		WriteForbidden(w, "sourcing scope required")
		return
	}

	var req CreateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}
	if req.FreelancerID == "" {
		WriteBadRequest(w, "freelancer_id is required")
		return
	}
	if req.TargetID == "" {
		WriteBadRequest(w, "target_id is required")
		return
	}
	if req.Score < 0 || req.Score > 100 {
		WriteBadRequest(w, "score must be between 0 and 100")
		return
	}

	inv := &models.MatchInvitation{
		FreelancerID: req.FreelancerID,
		TargetID:     req.TargetID,
		Score:        req.Score,
		ProposedRate: req.ProposedRate,
		Status:       models.StatusPending,
	}

	if err := h.store.Invitations().Create(r.Context(), inv); err != nil {
		h.logger.Error("failed to create invitation", "freelancer_id", req.FreelancerID, "error", err)
		WriteInternalError(w, "failed to create invitation")
		return
	}

	if _, err := h.scheduler.Process(r.Context(), inv); err != nil {
		// The invitation exists; the evaluator loop will retry delivery.
		h.logger.Error("initial evaluation failed", "invitation_id", inv.ID, "error", err)
	}

	// Re-read so the response reflects any immediate transition.
	created, err := h.store.Invitations().Get(r.Context(), inv.ID)
	if err != nil {
		created = inv
	}

	WriteJSON(w, http.StatusCreated, created)
}
