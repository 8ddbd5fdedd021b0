package models

import (
	"time"
)

// Notification is the payload dispatched to a freelancer when an invitation
// transitions to notified.
type Notification struct {
	InvitationID string    `json:"invitation_id"`
	FreelancerID string    `json:"freelancer_id"`
	TargetID     string    `json:"target_id"`
	Score        int       `json:"score"`
	ProposedRate float64   `json:"proposed_rate"`
	SentAt       time.Time `json:"sent_at"`
}

// ReassignmentJob is a queued request asking the sourcing service to route a
// declined opportunity to another freelancer. The engine only signals; it
// never selects the replacement candidate itself.
type ReassignmentJob struct {
	ID           string     `json:"id"`
	InvitationID string     `json:"invitation_id"`
	FreelancerID string     `json:"freelancer_id"`
	TargetID     string     `json:"target_id"`
	ReasonCode   ReasonCode `json:"reason_code"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
