package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gigmesh/match-engine/internal/models"
	"github.com/gigmesh/match-engine/internal/store"
)

// PreferencePatch carries a partial preference update. Nil fields are left
// untouched; for optional fields an empty string clears the value.
type PreferencePatch struct {
	AvailabilityStatus  *string    `json:"availability_status,omitempty"`
	AvailabilityMode    *string    `json:"availability_mode,omitempty"`
	Timezone            *string    `json:"timezone,omitempty"`
	DailyMatchLimit     *int       `json:"daily_match_limit,omitempty"`
	ClearDailyLimit     bool       `json:"clear_daily_limit,omitempty"`
	AutoAcceptThreshold *int       `json:"auto_accept_threshold,omitempty"`
	QuietHoursStart     *string    `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd       *string    `json:"quiet_hours_end,omitempty"`
	SnoozedUntil        *time.Time `json:"snoozed_until,omitempty"`
	Channels            *[]string  `json:"channels,omitempty"`
	EscalationContact   *string    `json:"escalation_contact,omitempty"`
	Notes               *string    `json:"notes,omitempty"`
}

// Preferences validates and persists freelancer match preferences.
type Preferences struct {
	store  store.Store
	logger *slog.Logger

	// onChange is invoked after a successful update so suppressed or
	// deferred invitations get re-evaluated without waiting for a tick.
	onChange func(ctx context.Context, freelancerID string)
}

// NewPreferences creates a preference service.
func NewPreferences(st store.Store, logger *slog.Logger) *Preferences {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preferences{store: st, logger: logger}
}

// OnChange registers a callback fired after every successful update.
func (p *Preferences) OnChange(fn func(ctx context.Context, freelancerID string)) {
	p.onChange = fn
}

// Get retrieves the preference for a freelancer.
func (p *Preferences) Get(ctx context.Context, freelancerID string) (*models.MatchPreference, error) {
	return p.store.Preferences().Get(ctx, freelancerID)
}

// Update validates the patch, merges it into the stored preference, and
// persists the result. No notification dispatch happens here.
func (p *Preferences) Update(ctx context.Context, freelancerID string, patch *PreferencePatch) (*models.MatchPreference, error) {
	pref, err := p.store.Preferences().Get(ctx, freelancerID)
	if err != nil {
		return nil, fmt.Errorf("loading preference: %w", err)
	}

	merged := *pref
	if err := applyPatch(&merged, patch); err != nil {
		return nil, err
	}
	if err := validatePreference(&merged, time.Now()); err != nil {
		return nil, err
	}

	merged.UpdatedAt = time.Now().UTC()
	if err := p.store.Preferences().Upsert(ctx, &merged); err != nil {
		return nil, fmt.Errorf("saving preference: %w", err)
	}

	p.logger.Info("preference updated",
		"freelancer_id", freelancerID,
		"availability_status", merged.AvailabilityStatus,
		"auto_accept_threshold", merged.AutoAcceptThreshold,
	)

	if p.onChange != nil {
		p.onChange(ctx, freelancerID)
	}

	return &merged, nil
}

func applyPatch(pref *models.MatchPreference, patch *PreferencePatch) error {
	ve := &ValidationError{}

	if patch.AvailabilityStatus != nil {
		switch s := models.AvailabilityStatus(*patch.AvailabilityStatus); s {
		case models.AvailabilityAvailable, models.AvailabilitySnoozed, models.AvailabilityOffline:
			pref.AvailabilityStatus = s
		default:
			ve.Add("availability_status", "must be one of available, snoozed, offline")
		}
	}
	if patch.AvailabilityMode != nil {
		switch m := models.AvailabilityMode(*patch.AvailabilityMode); m {
		case models.ModeAlwaysOn, models.ModeBusinessHours, models.ModeManual:
			pref.AvailabilityMode = m
		default:
			ve.Add("availability_mode", "must be one of always_on, business_hours, manual")
		}
	}
	if patch.Timezone != nil {
		if _, err := time.LoadLocation(*patch.Timezone); err != nil {
			ve.Add("timezone", "must be a valid IANA timezone name")
		} else {
			pref.Timezone = *patch.Timezone
		}
	}
	if patch.ClearDailyLimit {
		pref.DailyMatchLimit = nil
	} else if patch.DailyMatchLimit != nil {
		if *patch.DailyMatchLimit < 0 {
			ve.Add("daily_match_limit", "must be zero or positive")
		} else {
			limit := *patch.DailyMatchLimit
			pref.DailyMatchLimit = &limit
		}
	}
	if patch.AutoAcceptThreshold != nil {
		pref.AutoAcceptThreshold = *patch.AutoAcceptThreshold
	}
	if patch.QuietHoursStart != nil {
		pref.QuietHoursStart = *patch.QuietHoursStart
	}
	if patch.QuietHoursEnd != nil {
		pref.QuietHoursEnd = *patch.QuietHoursEnd
	}
	if patch.SnoozedUntil != nil {
		t := *patch.SnoozedUntil
		pref.SnoozedUntil = &t
	}
	if patch.Channels != nil {
		channels := make([]string, 0, len(*patch.Channels))
		for _, ch := range *patch.Channels {
			if ch != models.ChannelEmail && ch != models.ChannelInApp {
				ve.Add("channels", fmt.Sprintf("unknown channel %q", ch))
				continue
			}
			channels = append(channels, ch)
		}
		pref.Channels = channels
	}
	if patch.EscalationContact != nil {
		pref.EscalationContact = *patch.EscalationContact
	}
	if patch.Notes != nil {
		pref.Notes = *patch.Notes
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}

// validatePreference checks the merged record. Out-of-range thresholds are
// rejected, never clamped silently.
func validatePreference(pref *models.MatchPreference, now time.Time) error {
	ve := &ValidationError{}

	if pref.AutoAcceptThreshold < 0 || pref.AutoAcceptThreshold > 100 {
		ve.Add("auto_accept_threshold", "must be between 0 and 100")
	}
	if pref.QuietHoursStart != "" {
		if _, err := parseClock(pref.QuietHoursStart); err != nil {
			ve.Add("quiet_hours_start", "must be a time of day in HH:MM form")
		}
	}
	if pref.QuietHoursEnd != "" {
		if _, err := parseClock(pref.QuietHoursEnd); err != nil {
			ve.Add("quiet_hours_end", "must be a time of day in HH:MM form")
		}
	}
	if (pref.QuietHoursStart == "") != (pref.QuietHoursEnd == "") {
		ve.Add("quiet_hours_end", "quiet hours require both a start and an end")
	}
	if pref.AvailabilityStatus == models.AvailabilitySnoozed {
		if pref.SnoozedUntil == nil {
			ve.Add("snoozed_until", "required while status is snoozed")
		} else if !pref.SnoozedUntil.After(now) {
			ve.Add("snoozed_until", "must be in the future")
		}
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}
