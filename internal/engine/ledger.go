package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gigmesh/match-engine/internal/models"
	"github.com/gigmesh/match-engine/internal/store"
)

// Ledger aggregates resolved invitations into acceptance-rate and
// response-time statistics. Read-only.
type Ledger struct {
	store  store.Store
	logger *slog.Logger
}

// NewLedger creates a history ledger.
func NewLedger(st store.Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: st, logger: logger}
}

// Stats computes statistics over the freelancer's terminal invitations.
func (l *Ledger) Stats(ctx context.Context, freelancerID string) (*models.MatchStats, error) {
	resolved, err := l.store.Invitations().ListResolved(ctx, freelancerID)
	if err != nil {
		return nil, fmt.Errorf("loading resolved invitations: %w", err)
	}
	return Aggregate(resolved), nil
}

// Aggregate computes statistics over a set of terminal invitations.
// Acceptance rate is accepted over accepted+declined+expired; reassigned
// invitations are excluded from the denominator. Average response time
// covers accepted and declined invitations that carry both timestamps.
func Aggregate(resolved []*models.MatchInvitation) *models.MatchStats {
	stats := &models.MatchStats{}

	var totalMinutes float64
	var responded int

	for _, inv := range resolved {
		switch inv.Status {
		case models.StatusAccepted:
			stats.Accepted++
		case models.StatusDeclined:
			stats.Declined++
		case models.StatusExpired:
			stats.Expired++
		case models.StatusReassigned:
			stats.Reassigned++
		default:
			continue
		}

		if inv.Status == models.StatusAccepted || inv.Status == models.StatusDeclined {
			if inv.NotifiedAt != nil && inv.RespondedAt != nil {
				totalMinutes += inv.RespondedAt.Sub(*inv.NotifiedAt).Minutes()
				responded++
			}
		}
	}

	denominator := stats.Accepted + stats.Declined + stats.Expired
	if denominator > 0 {
		stats.AcceptanceRate = float64(stats.Accepted) / float64(denominator)
	}
	if responded > 0 {
		stats.AverageResponseMinutes = totalMinutes / float64(responded)
	}

	return stats
}
