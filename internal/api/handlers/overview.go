package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gigmesh/match-engine/internal/engine"
	"github.com/gigmesh/match-engine/internal/models"
	"github.com/gigmesh/match-engine/internal/store"
)

// OverviewHandler serves the dashboard overview for one freelancer.
type OverviewHandler struct {
	store       store.Store
	preferences *engine.Preferences
	ledger      *engine.Ledger
	logger      *slog.Logger
}

// NewOverviewHandler creates a new overview handler.
func NewOverviewHandler(st store.Store, prefs *engine.Preferences, ledger *engine.Ledger, logger *slog.Logger) *OverviewHandler {
	return &OverviewHandler{
		store:       st,
		preferences: prefs,
		ledger:      ledger,
		logger:      logger,
	}
}

// OverviewSummary counts a freelancer's open invitations.
type OverviewSummary struct {
	// LiveInvites is all open invitations, queued or delivered.
	LiveInvites int `json:"live_invites"`
	// PendingDecisions is delivered invitations awaiting an answer.
	PendingDecisions int `json:"pending_decisions"`
}

// OverviewResponse is the GET overview payload.
type OverviewResponse struct {
	Summary    OverviewSummary         `json:"summary"`
	Stats      *models.MatchStats      `json:"stats"`
	Preference *models.MatchPreference `json:"preference"`
}

// Get handles GET /v1/freelancers/{freelancerID}/overview.
func (h *OverviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	freelancerID, ok := authorizeFreelancer(w, r)
	if !ok {
		return
	}

	pending, notified, err := h.store.Invitations().CountOpen(r.Context(), freelancerID)
	if err != nil {
		h.logger.Error("failed to count open invitations", "freelancer_id", freelancerID, "error", err)
		WriteInternalError(w, "failed to load overview")
		return
	}

	stats, err := h.ledger.Stats(r.Context(), freelancerID)
	if err != nil {
		h.logger.Error("failed to compute stats", "freelancer_id", freelancerID, "error", err)
		WriteInternalError(w, "failed to load overview")
		return
	}

	pref, err := h.preferences.Get(r.Context(), freelancerID)
	if err != nil {
		h.logger.Error("failed to load preference", "freelancer_id", freelancerID, "error", err)
		WriteInternalError(w, "failed to load overview")
		return
	}

	WriteJSON(w, http.StatusOK, &OverviewResponse{
		Summary: OverviewSummary{
			LiveInvites:      pending + notified,
			PendingDecisions: notified,
		},
		Stats:      stats,
		Preference: pref,
	})
}
