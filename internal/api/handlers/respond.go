package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gigmesh/match-engine/internal/engine"
	"github.com/gigmesh/match-engine/internal/models"
)

// RespondHandler applies manual responses to invitations.
type RespondHandler struct {
	responder *engine.Responder
	logger    *slog.Logger
}

// NewRespondHandler creates a new respond handler.
func NewRespondHandler(responder *engine.Responder, logger *slog.Logger) *RespondHandler {
	return &RespondHandler{responder: responder, logger: logger}
}

// RespondRequest is the POST respond body.
type RespondRequest struct {
	Status          string   `json:"status"` // "accepted" or "declined"
	ReasonCode      string   `json:"reason_code,omitempty"`
	ResponseNotes   string   `json:"response_notes,omitempty"`
	CompletionValue *float64 `json:"completion_value,omitempty"`
	Reassign        bool     `json:"reassign,omitempty"`
}

// Respond handles POST /v1/freelancers/{freelancerID}/matches/{invitationID}/respond.
func (h *RespondHandler) Respond(w http.ResponseWriter, r *http.Request) {
	freelancerID, ok := authorizeFreelancer(w, r)
	if !ok {
		return
	}

	invitationID := chi.URLParam(r, "invitationID")
	if invitationID == "" {
		WriteBadRequest(w, "invitation ID is required")
		return
	}

	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}

	var inv *models.MatchInvitation
	var err error
	switch req.Status {
	case string(models.StatusAccepted):
		inv, err = h.responder.Accept(r.Context(), freelancerID, invitationID, &engine.AcceptInput{
			CompletionValue: req.CompletionValue,
			ResponseNotes:   req.ResponseNotes,
		})
	case string(models.StatusDeclined):
		inv, err = h.responder.Decline(r.Context(), freelancerID, invitationID, &engine.DeclineInput{
			ReasonCode:    models.ReasonCode(req.ReasonCode),
			ResponseNotes: req.ResponseNotes,
			Reassign:      req.Reassign,
		})
	default:
		WriteBadRequest(w, "status must be accepted or declined")
		return
	}

	if err != nil {
		WriteEngineError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, inv)
}
