package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigmesh/match-engine/internal/models"
	"github.com/gigmesh/match-engine/internal/store/storetest"
)

func resolvedInvitation(status models.InvitationStatus, responseAfter time.Duration) *models.MatchInvitation {
	notified := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	inv := &models.MatchInvitation{
		FreelancerID: "fr-1",
		TargetID:     "job",
		Status:       status,
		NotifiedAt:   &notified,
	}
	if responseAfter > 0 {
		responded := notified.Add(responseAfter)
		inv.RespondedAt = &responded
	}
	return inv
}

func TestAggregate(t *testing.T) {
	var resolved []*models.MatchInvitation
	for i := 0; i < 5; i++ {
		resolved = append(resolved, resolvedInvitation(models.StatusAccepted, 30*time.Minute))
	}
	for i := 0; i < 3; i++ {
		resolved = append(resolved, resolvedInvitation(models.StatusDeclined, 60*time.Minute))
	}
	for i := 0; i < 2; i++ {
		resolved = append(resolved, resolvedInvitation(models.StatusExpired, 0))
	}
	// Reassigned invitations are excluded from the acceptance-rate denominator.
	resolved = append(resolved, resolvedInvitation(models.StatusReassigned, 10*time.Minute))

	stats := Aggregate(resolved)
	assert.Equal(t, 5, stats.Accepted)
	assert.Equal(t, 3, stats.Declined)
	assert.Equal(t, 2, stats.Expired)
	assert.Equal(t, 1, stats.Reassigned)
	assert.InDelta(t, 0.5, stats.AcceptanceRate, 1e-9)

	// (5*30 + 3*60) / 8 responded
	assert.InDelta(t, 41.25, stats.AverageResponseMinutes, 1e-9)
}

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil)
	assert.Zero(t, stats.Accepted)
	assert.Zero(t, stats.AcceptanceRate)
	assert.Zero(t, stats.AverageResponseMinutes)
}

func TestAggregateSkipsMissingTimestamps(t *testing.T) {
	// An accepted invitation without a responded timestamp contributes to the
	// counts but not to the response-time average.
	inv := resolvedInvitation(models.StatusAccepted, 0)
	stats := Aggregate([]*models.MatchInvitation{inv})
	assert.Equal(t, 1, stats.Accepted)
	assert.Zero(t, stats.AverageResponseMinutes)
}

func TestLedgerStats(t *testing.T) {
	ctx := context.Background()
	st := storetest.New()
	ledger := NewLedger(st, nil)

	st.SeedInvitation(resolvedInvitation(models.StatusAccepted, 15*time.Minute))
	st.SeedInvitation(resolvedInvitation(models.StatusDeclined, 45*time.Minute))
	// Open invitations are not part of history.
	st.SeedInvitation(&models.MatchInvitation{FreelancerID: "fr-1", TargetID: "job"})
	// Other freelancers do not leak in.
	other := resolvedInvitation(models.StatusAccepted, time.Minute)
	other.FreelancerID = "fr-2"
	st.SeedInvitation(other)

	stats, err := ledger.Stats(ctx, "fr-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Accepted)
	assert.Equal(t, 1, stats.Declined)
	assert.InDelta(t, 0.5, stats.AcceptanceRate, 1e-9)
	assert.InDelta(t, 30.0, stats.AverageResponseMinutes, 1e-9)
}
