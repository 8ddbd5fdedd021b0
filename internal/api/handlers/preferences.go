package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gigmesh/match-engine/internal/api/middleware"
	"github.com/gigmesh/match-engine/internal/auth"
	"github.com/gigmesh/match-engine/internal/engine"
)

// PreferencesHandler handles preference HTTP requests.
type PreferencesHandler struct {
	preferences *engine.Preferences
	logger      *slog.Logger
}

// NewPreferencesHandler creates a new preferences handler.
func NewPreferencesHandler(prefs *engine.Preferences, logger *slog.Logger) *PreferencesHandler {
	return &PreferencesHandler{preferences: prefs, logger: logger}
}

// Get handles GET /v1/freelancers/{freelancerID}/preferences.
func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	freelancerID, ok := authorizeFreelancer(w, r)
	if !ok {
		return
	}

	pref, err := h.preferences.Get(r.Context(), freelancerID)
	if err != nil {
		h.logger.Error("failed to load preference", "freelancer_id", freelancerID, "error", err)
		WriteInternalError(w, "failed to load preference")
		return
	}

	WriteJSON(w, http.StatusOK, pref)
}

// Update handles PATCH /v1/freelancers/{freelancerID}/preferences.
func (h *PreferencesHandler) Update(w http.ResponseWriter, r *http.Request) {
	freelancerID, ok := authorizeFreelancer(w, r)
	if !ok {
		return
	}

	var patch engine.PreferencePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}

	pref, err := h.preferences.Update(r.Context(), freelancerID, &patch)
	if err != nil {
		if _, isValidation := engine.AsValidationError(err); !isValidation {
			h.logger.Error("failed to update preference", "freelancer_id", freelancerID, "error", err)
		}
		WriteEngineError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, pref)
}

// authorizeFreelancer resolves the freelancerID path parameter and checks it
// against the authenticated subject. A freelancer token may only touch its
// own resources.
func authorizeFreelancer(w http.ResponseWriter, r *http.Request) (string, bool) {
	freelancerID := chi.URLParam(r, "freelancerID")
	if freelancerID == "" {
		WriteBadRequest(w, "freelancer ID is required")
		return "", false
	}

	scope := middleware.GetScope(r.Context())
	subject := middleware.GetSubject(r.Context())
	if scope != auth.ScopeFreelancer || subject != freelancerID {
		WriteForbidden(w, "token does not grant access to this freelancer")
		return "", false
	}

	return freelancerID, true
}
