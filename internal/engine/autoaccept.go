package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gigmesh/match-engine/internal/models"
	"github.com/gigmesh/match-engine/internal/store"
)

// AutoAccept accepts notified invitations on the freelancer's behalf when the
// candidate score meets the configured threshold.
type AutoAccept struct {
	store  store.Store
	logger *slog.Logger
}

// NewAutoAccept creates an auto-accept evaluator.
func NewAutoAccept(st store.Store, logger *slog.Logger) *AutoAccept {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoAccept{store: st, logger: logger}
}

// Evaluate runs immediately after an invitation transitions to notified.
// Returns true when the invitation was auto-accepted. Losing the transition
// race to a manual response is not an error; the manual outcome stands.
func (a *AutoAccept) Evaluate(ctx context.Context, inv *models.MatchInvitation, pref *models.MatchPreference) (bool, error) {
	if inv.Status != models.StatusNotified {
		return false, nil
	}
	if inv.Score < pref.AutoAcceptThreshold {
		return false, nil
	}

	respondedAt := time.Now().UTC()
	inv.Status = models.StatusAccepted
	inv.RespondedAt = &respondedAt
	inv.Response = &models.MatchResponse{AutoAccepted: true}

	err := a.store.Invitations().TransitionStatus(ctx, inv, models.StatusNotified)
	if errors.Is(err, store.ErrStatusConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("auto-accepting invitation: %w", err)
	}

	a.logger.Info("invitation auto-accepted",
		"invitation_id", inv.ID,
		"freelancer_id", inv.FreelancerID,
		"score", inv.Score,
		"threshold", pref.AutoAcceptThreshold,
	)
	return true, nil
}
