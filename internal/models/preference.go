// Package models provides data structures for the match engine.
package models

import (
	"time"
)

// AvailabilityStatus represents a freelancer's current availability.
type AvailabilityStatus string

const (
	// AvailabilityAvailable indicates the freelancer accepts new match candidates.
	AvailabilityAvailable AvailabilityStatus = "available"
	// AvailabilitySnoozed indicates notifications are paused until SnoozedUntil.
	AvailabilitySnoozed AvailabilityStatus = "snoozed"
	// AvailabilityOffline indicates no notifications are delivered at all.
	AvailabilityOffline AvailabilityStatus = "offline"
)

// AvailabilityMode represents how availability is managed.
type AvailabilityMode string

const (
	// ModeAlwaysOn keeps the freelancer reachable around the clock.
	ModeAlwaysOn AvailabilityMode = "always_on"
	// ModeBusinessHours restricts notifications to configured working hours.
	ModeBusinessHours AvailabilityMode = "business_hours"
	// ModeManual leaves availability entirely to explicit status changes.
	ModeManual AvailabilityMode = "manual"
)

// Notification channel names stored on a preference.
const (
	ChannelEmail = "email"
	ChannelInApp = "in_app"
)

// MatchPreference holds one freelancer's availability and matching configuration.
type MatchPreference struct {
	FreelancerID        string             `json:"freelancer_id"`
	AvailabilityStatus  AvailabilityStatus `json:"availability_status"`
	AvailabilityMode    AvailabilityMode   `json:"availability_mode"`
	Timezone            string             `json:"timezone"`
	DailyMatchLimit     *int               `json:"daily_match_limit"` // nil means unlimited
	AutoAcceptThreshold int                `json:"auto_accept_threshold"`
	QuietHoursStart     string             `json:"quiet_hours_start,omitempty"` // "HH:MM", empty when unset
	QuietHoursEnd       string             `json:"quiet_hours_end,omitempty"`
	SnoozedUntil        *time.Time         `json:"snoozed_until,omitempty"`
	Channels            []string           `json:"channels"`
	EscalationContact   string             `json:"escalation_contact,omitempty"`
	Notes               string             `json:"notes,omitempty"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// DefaultPreference returns the preference applied to a freelancer that has
// never configured matching.
func DefaultPreference(freelancerID string) *MatchPreference {
	return &MatchPreference{
		FreelancerID:        freelancerID,
		AvailabilityStatus:  AvailabilityAvailable,
		AvailabilityMode:    ModeAlwaysOn,
		Timezone:            "UTC",
		AutoAcceptThreshold: 100,
		Channels:            []string{ChannelEmail, ChannelInApp},
	}
}

// ChannelEnabled reports whether the named notification channel is on.
func (p *MatchPreference) ChannelEnabled(name string) bool {
	for _, ch := range p.Channels {
		if ch == name {
			return true
		}
	}
	return false
}

// Snoozing reports whether the freelancer is snoozed at the given instant.
// SnoozedUntil is only meaningful while the status is snoozed.
func (p *MatchPreference) Snoozing(now time.Time) bool {
	if p.AvailabilityStatus != AvailabilitySnoozed {
		return false
	}
	return p.SnoozedUntil != nil && p.SnoozedUntil.After(now)
}

// HasQuietHours reports whether a quiet-hours window is configured.
func (p *MatchPreference) HasQuietHours() bool {
	return p.QuietHoursStart != "" && p.QuietHoursEnd != ""
}

// Location resolves the preference timezone, falling back to UTC when the
// stored zone name cannot be loaded.
func (p *MatchPreference) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
