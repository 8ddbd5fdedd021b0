package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gigmesh/match-engine/internal/models"
	"github.com/gigmesh/match-engine/internal/store"
)

// MatchesHandler serves invitation listings.
type MatchesHandler struct {
	store  store.Store
	logger *slog.Logger
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(st store.Store, logger *slog.Logger) *MatchesHandler {
	return &MatchesHandler{store: st, logger: logger}
}

// MatchListResponse is the GET matches payload.
type MatchListResponse struct {
	Entries    []*models.MatchInvitation `json:"entries"`
	Pagination *store.Pagination         `json:"pagination"`
}

// List handles GET /v1/freelancers/{freelancerID}/matches.
func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	freelancerID, ok := authorizeFreelancer(w, r)
	if !ok {
		return
	}

	opts := store.ListOptions{
		IncludeHistorical: r.URL.Query().Get("include_historical") == "true",
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil {
			opts.Page = page
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			opts.PageSize = size
		}
	}

	entries, pagination, err := h.store.Invitations().ListByFreelancer(r.Context(), freelancerID, opts)
	if err != nil {
		h.logger.Error("failed to list invitations", "freelancer_id", freelancerID, "error", err)
		WriteInternalError(w, "failed to list matches")
		return
	}
	if entries == nil {
		entries = []*models.MatchInvitation{}
	}

	WriteJSON(w, http.StatusOK, &MatchListResponse{
		Entries:    entries,
		Pagination: pagination,
	})
}
