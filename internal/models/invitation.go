package models

import (
	"time"
)

// InvitationStatus represents the lifecycle state of a match invitation.
type InvitationStatus string

const (
	// StatusPending indicates the invitation has not yet been delivered.
	StatusPending InvitationStatus = "pending"
	// StatusNotified indicates the freelancer has been notified and a
	// response is awaited.
	StatusNotified InvitationStatus = "notified"
	// StatusAccepted indicates the invitation was accepted (manually or
	// automatically).
	StatusAccepted InvitationStatus = "accepted"
	// StatusDeclined indicates the freelancer declined.
	StatusDeclined InvitationStatus = "declined"
	// StatusExpired indicates the response window elapsed without an answer.
	StatusExpired InvitationStatus = "expired"
	// StatusReassigned indicates the invitation was declined with a request
	// to route the opportunity to another freelancer.
	StatusReassigned InvitationStatus = "reassigned"
)

// ReasonCode classifies a decline.
type ReasonCode string

const (
	ReasonCapacity ReasonCode = "capacity"
	ReasonSkill    ReasonCode = "skill"
	ReasonBudget   ReasonCode = "budget"
	ReasonTimeline ReasonCode = "timeline"
	ReasonOther    ReasonCode = "other"
)

// ValidReasonCode reports whether code is one of the fixed decline reasons.
func ValidReasonCode(code ReasonCode) bool {
	switch code {
	case ReasonCapacity, ReasonSkill, ReasonBudget, ReasonTimeline, ReasonOther:
		return true
	}
	return false
}

// reasonLabels maps decline reason codes to their display labels.
var reasonLabels = map[ReasonCode]string{
	ReasonCapacity: "No capacity right now",
	ReasonSkill:    "Not a skill fit",
	ReasonBudget:   "Budget too low",
	ReasonTimeline: "Timeline does not work",
	ReasonOther:    "Other",
}

// Label returns the display label for a reason code.
func (c ReasonCode) Label() string {
	return reasonLabels[c]
}

// MatchInvitation represents one proposed pairing between a freelancer and a
// work opportunity. The sourcing service creates it; the engine owns it
// thereafter.
type MatchInvitation struct {
	ID           string           `json:"id"`
	FreelancerID string           `json:"freelancer_id"`
	TargetID     string           `json:"target_id"`
	Score        int              `json:"score"` // 0-100, assigned by sourcing
	ProposedRate float64          `json:"proposed_rate"`
	Status       InvitationStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	NotifiedAt   *time.Time       `json:"notified_at,omitempty"`
	RespondedAt  *time.Time       `json:"responded_at,omitempty"`

	Response *MatchResponse `json:"response,omitempty"`
}

// MatchResponse records how a terminal invitation was resolved.
type MatchResponse struct {
	ReasonCode      *ReasonCode `json:"reason_code,omitempty"`
	ReasonLabel     string      `json:"reason_label,omitempty"`
	ResponseNotes   string      `json:"response_notes,omitempty"`
	CompletionValue *float64    `json:"completion_value,omitempty"`
	AutoAccepted    bool        `json:"auto_accepted,omitempty"`
}

// IsTerminal reports whether the status admits no further transitions.
func (s InvitationStatus) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusDeclined, StatusExpired, StatusReassigned:
		return true
	}
	return false
}

// IsOpen reports whether the invitation still awaits resolution.
func (i *MatchInvitation) IsOpen() bool {
	return !i.Status.IsTerminal()
}

// CanTransitionTo reports whether moving to the given status is permitted by
// the lifecycle graph: pending -> notified, and {pending,notified} -> any
// terminal state.
func (i *MatchInvitation) CanTransitionTo(next InvitationStatus) bool {
	if i.Status.IsTerminal() {
		return false
	}
	if next == StatusNotified {
		return i.Status == StatusPending
	}
	return next.IsTerminal()
}
