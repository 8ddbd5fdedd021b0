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

func strPtr(s string) *string { return &s }

func TestPreferencesUpdate(t *testing.T) {
	ctx := context.Background()
	st := storetest.New()
	prefs := NewPreferences(st, nil)

	threshold := 80
	limit := 5
	updated, err := prefs.Update(ctx, "fr-1", &PreferencePatch{
		AvailabilityStatus:  strPtr("available"),
		Timezone:            strPtr("Europe/Berlin"),
		DailyMatchLimit:     &limit,
		AutoAcceptThreshold: &threshold,
		QuietHoursStart:     strPtr("22:00"),
		QuietHoursEnd:       strPtr("07:30"),
		Channels:            &[]string{models.ChannelEmail},
	})
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityAvailable, updated.AvailabilityStatus)
	assert.Equal(t, "Europe/Berlin", updated.Timezone)
	require.NotNil(t, updated.DailyMatchLimit)
	assert.Equal(t, 5, *updated.DailyMatchLimit)
	assert.Equal(t, 80, updated.AutoAcceptThreshold)
	assert.Equal(t, []string{models.ChannelEmail}, updated.Channels)

	// The update persisted.
	stored, err := prefs.Get(ctx, "fr-1")
	require.NoError(t, err)
	assert.Equal(t, 80, stored.AutoAcceptThreshold)
}

func TestPreferencesUpdatePartialPatchKeepsRest(t *testing.T) {
	ctx := context.Background()
	st := storetest.New()
	prefs := NewPreferences(st, nil)

	threshold := 70
	_, err := prefs.Update(ctx, "fr-1", &PreferencePatch{AutoAcceptThreshold: &threshold})
	require.NoError(t, err)

	_, err = prefs.Update(ctx, "fr-1", &PreferencePatch{Timezone: strPtr("Asia/Tokyo")})
	require.NoError(t, err)

	stored, err := prefs.Get(ctx, "fr-1")
	require.NoError(t, err)
	assert.Equal(t, 70, stored.AutoAcceptThreshold)
	assert.Equal(t, "Asia/Tokyo", stored.Timezone)
}

func TestPreferencesUpdateClearDailyLimit(t *testing.T) {
	ctx := context.Background()
	st := storetest.New()
	prefs := NewPreferences(st, nil)

	limit := 3
	_, err := prefs.Update(ctx, "fr-1", &PreferencePatch{DailyMatchLimit: &limit})
	require.NoError(t, err)

	updated, err := prefs.Update(ctx, "fr-1", &PreferencePatch{ClearDailyLimit: true})
	require.NoError(t, err)
	assert.Nil(t, updated.DailyMatchLimit)
}

func TestPreferencesUpdateValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		patch     *PreferencePatch
		wantField string
	}{
		{
			name:      "threshold above 100",
			patch:     &PreferencePatch{AutoAcceptThreshold: intPtr(101)},
			wantField: "auto_accept_threshold",
		},
		{
			name:      "negative threshold",
			patch:     &PreferencePatch{AutoAcceptThreshold: intPtr(-1)},
			wantField: "auto_accept_threshold",
		},
		{
			name:      "unknown availability status",
			patch:     &PreferencePatch{AvailabilityStatus: strPtr("away")},
			wantField: "availability_status",
		},
		{
			name:      "bad timezone",
			patch:     &PreferencePatch{Timezone: strPtr("Noplace/Nowhere")},
			wantField: "timezone",
		},
		{
			name:      "negative daily limit",
			patch:     &PreferencePatch{DailyMatchLimit: intPtr(-2)},
			wantField: "daily_match_limit",
		},
		{
			name: "unparseable quiet hours",
			patch: &PreferencePatch{
				QuietHoursStart: strPtr("25:99"),
				QuietHoursEnd:   strPtr("06:00"),
			},
			wantField: "quiet_hours_start",
		},
		{
			name: "quiet hours with trailing characters",
			patch: &PreferencePatch{
				QuietHoursStart: strPtr("22:00junk"),
				QuietHoursEnd:   strPtr("06:00"),
			},
			wantField: "quiet_hours_start",
		},
		{
			name:      "quiet start without end",
			patch:     &PreferencePatch{QuietHoursStart: strPtr("22:00")},
			wantField: "quiet_hours_end",
		},
		{
			name:      "snoozed without a snooze end",
			patch:     &PreferencePatch{AvailabilityStatus: strPtr("snoozed")},
			wantField: "snoozed_until",
		},
		{
			name: "snoozed until the past",
			patch: &PreferencePatch{
				AvailabilityStatus: strPtr("snoozed"),
				SnoozedUntil:       timePtr(time.Now().Add(-time.Hour)),
			},
			wantField: "snoozed_until",
		},
		{
			name:      "unknown channel",
			patch:     &PreferencePatch{Channels: &[]string{"carrier_pigeon"}},
			wantField: "channels",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := storetest.New()
			prefs := NewPreferences(st, nil)

			_, err := prefs.Update(ctx, "fr-1", tt.patch)
			ve, ok := AsValidationError(err)
			require.True(t, ok, "want validation error, got %v", err)

			found := false
			for _, f := range ve.Fields {
				if f.Field == tt.wantField {
					found = true
				}
			}
			assert.True(t, found, "no error for field %s in %v", tt.wantField, ve.Fields)

			// Rejected patches change nothing.
			stored, err := prefs.Get(ctx, "fr-1")
			require.NoError(t, err)
			assert.Equal(t, models.DefaultPreference("fr-1").AutoAcceptThreshold, stored.AutoAcceptThreshold)
		})
	}
}

func TestPreferencesUpdateFiresOnChange(t *testing.T) {
	ctx := context.Background()
	st := storetest.New()
	prefs := NewPreferences(st, nil)

	var changed []string
	prefs.OnChange(func(ctx context.Context, freelancerID string) {
		changed = append(changed, freelancerID)
	})

	_, err := prefs.Update(ctx, "fr-1", &PreferencePatch{Timezone: strPtr("UTC")})
	require.NoError(t, err)
	assert.Equal(t, []string{"fr-1"}, changed)

	// Invalid updates do not fire the callback.
	_, err = prefs.Update(ctx, "fr-1", &PreferencePatch{AutoAcceptThreshold: intPtr(500)})
	require.Error(t, err)
	assert.Len(t, changed, 1)
}
