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

func TestEvaluatorTickPromotesEligiblePending(t *testing.T) {
	ctx := context.Background()
	st := storetest.New()
	notifier := &recordingNotifier{}
	scheduler := NewScheduler(st, notifier, nil, nil)
	evaluator := NewEvaluator(st, scheduler, time.Minute, nil)

	created := time.Now().UTC().Add(-time.Minute)
	eligible := st.SeedInvitation(&models.MatchInvitation{
		FreelancerID: "fr-1", TargetID: "job-1", Score: 50, CreatedAt: created,
	})

	st.SeedPreference(&models.MatchPreference{
		FreelancerID:       "fr-2",
		AvailabilityStatus: models.AvailabilityOffline,
		Timezone:           "UTC",
		Channels:           []string{models.ChannelEmail},
	})
	suppressed := st.SeedInvitation(&models.MatchInvitation{
		FreelancerID: "fr-2", TargetID: "job-2", Score: 50, CreatedAt: created,
	})

	require.NoError(t, evaluator.Tick(ctx))

	assert.Equal(t, models.StatusNotified, st.Invitation(eligible.ID).Status)
	assert.Equal(t, models.StatusPending, st.Invitation(suppressed.ID).Status)
	assert.Equal(t, 1, notifier.count())

	// The suppressed one is picked up once the freelancer comes back.
	st.SeedPreference(&models.MatchPreference{
		FreelancerID:       "fr-2",
		AvailabilityStatus: models.AvailabilityAvailable,
		Timezone:           "UTC",
		Channels:           []string{models.ChannelEmail},
	})
	require.NoError(t, evaluator.Tick(ctx))
	assert.Equal(t, models.StatusNotified, st.Invitation(suppressed.ID).Status)
}

func TestEvaluatorStartStop(t *testing.T) {
	st := storetest.New()
	scheduler := NewScheduler(st, nil, nil, nil)
	evaluator := NewEvaluator(st, scheduler, 10*time.Millisecond, nil)

	done := make(chan error, 1)
	go func() {
		done <- evaluator.Start(context.Background())
	}()

	time.Sleep(30 * time.Millisecond)
	evaluator.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("evaluator did not stop")
	}
}
