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

// Notifier delivers match notifications over the freelancer's enabled
// channels. Delivery happens off the calling goroutine; failures are retried
// internally and never propagate to the status transition.
type Notifier interface {
	Dispatch(n *models.Notification, channels []string)
}

// DecisionKind classifies a scheduling decision.
type DecisionKind int

const (
	// DecisionSuppress leaves the invitation pending with no resume time;
	// it is re-evaluated on the next preference change or worker tick.
	DecisionSuppress DecisionKind = iota
	// DecisionDefer leaves the invitation pending until ResumeAt.
	DecisionDefer
	// DecisionDispatch promotes the invitation to notified.
	DecisionDispatch
)

// Decision is the outcome of evaluating one pending invitation.
type Decision struct {
	Kind     DecisionKind
	ResumeAt time.Time // set for DecisionDefer
	Reason   string
}

// Scheduler routes newly scored invitations through availability, quiet
// hours, and daily-limit checks, promoting eligible ones to notified.
type Scheduler struct {
	store      store.Store
	notifier   Notifier
	autoAccept *AutoAccept
	logger     *slog.Logger
}

// NewScheduler creates a notification scheduler.
func NewScheduler(st store.Store, notifier Notifier, autoAccept *AutoAccept, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:      st,
		notifier:   notifier,
		autoAccept: autoAccept,
		logger:     logger,
	}
}

// Evaluate decides what to do with a pending invitation given the
// freelancer's preference and the current instant. Pure: no I/O except the
// daily-limit count supplied by the caller.
func Evaluate(pref *models.MatchPreference, notifiedToday int, now time.Time) Decision {
	if pref.AvailabilityStatus == models.AvailabilityOffline {
		return Decision{Kind: DecisionSuppress, Reason: "freelancer offline"}
	}
	if pref.Snoozing(now) {
		return Decision{Kind: DecisionDefer, ResumeAt: *pref.SnoozedUntil, Reason: "snoozed"}
	}

	local := now.In(pref.Location())

	if pref.HasQuietHours() {
		start, errStart := parseClock(pref.QuietHoursStart)
		end, errEnd := parseClock(pref.QuietHoursEnd)
		if errStart == nil && errEnd == nil && inWindow(local, start, end) {
			return Decision{
				Kind:     DecisionDefer,
				ResumeAt: nextOccurrence(local, end),
				Reason:   "quiet hours",
			}
		}
	}

	if pref.DailyMatchLimit != nil && notifiedToday >= *pref.DailyMatchLimit {
		return Decision{
			Kind:     DecisionDefer,
			ResumeAt: nextLocalMidnight(local),
			Reason:   "daily match limit reached",
		}
	}

	return Decision{Kind: DecisionDispatch}
}

// Process evaluates one pending invitation and applies the outcome. A
// dispatch decision promotes the invitation to notified, hands the
// notification to the notifier, and immediately runs auto-accept.
func (s *Scheduler) Process(ctx context.Context, inv *models.MatchInvitation) (Decision, error) {
	if inv.Status != models.StatusPending {
		return Decision{}, fmt.Errorf("invitation %s is %s, not pending", inv.ID, inv.Status)
	}

	pref, err := s.store.Preferences().Get(ctx, inv.FreelancerID)
	if err != nil {
		return Decision{}, fmt.Errorf("loading preference: %w", err)
	}

	now := time.Now()
	notifiedToday := 0
	if pref.DailyMatchLimit != nil {
		midnight := localMidnight(now.In(pref.Location()))
		notifiedToday, err = s.store.Invitations().CountNotifiedSince(ctx, inv.FreelancerID, midnight)
		if err != nil {
			return Decision{}, fmt.Errorf("counting notified invitations: %w", err)
		}
	}

	decision := Evaluate(pref, notifiedToday, now)
	if decision.Kind != DecisionDispatch {
		s.logger.Debug("invitation held back",
			"invitation_id", inv.ID,
			"freelancer_id", inv.FreelancerID,
			"reason", decision.Reason,
		)
		return decision, nil
	}

	notifiedAt := now.UTC()
	inv.Status = models.StatusNotified
	inv.NotifiedAt = &notifiedAt
	if err := s.store.Invitations().TransitionStatus(ctx, inv, models.StatusPending); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			// Another worker or a manual response got there first.
			return decision, nil
		}
		return Decision{}, fmt.Errorf("promoting invitation: %w", err)
	}

	s.logger.Info("invitation notified",
		"invitation_id", inv.ID,
		"freelancer_id", inv.FreelancerID,
		"score", inv.Score,
	)

	if s.notifier != nil && len(pref.Channels) > 0 {
		s.notifier.Dispatch(&models.Notification{
			InvitationID: inv.ID,
			FreelancerID: inv.FreelancerID,
			TargetID:     inv.TargetID,
			Score:        inv.Score,
			ProposedRate: inv.ProposedRate,
			SentAt:       notifiedAt,
		}, pref.Channels)
	}

	if s.autoAccept != nil {
		if _, err := s.autoAccept.Evaluate(ctx, inv, pref); err != nil {
			s.logger.Error("auto-accept evaluation failed",
				"invitation_id", inv.ID,
				"error", err,
			)
		}
	}

	return decision, nil
}

// ProcessPendingFor re-evaluates all pending invitations for one freelancer.
// Called after a preference change so suppressed invitations do not wait for
// the next worker tick.
func (s *Scheduler) ProcessPendingFor(ctx context.Context, freelancerID string) {
	invitations, err := s.store.Invitations().ListPending(ctx, freelancerID)
	if err != nil {
		s.logger.Error("listing pending invitations", "freelancer_id", freelancerID, "error", err)
		return
	}

	for _, inv := range invitations {
		if _, err := s.Process(ctx, inv); err != nil {
			s.logger.Error("re-evaluating invitation",
				"invitation_id", inv.ID,
				"error", err,
			)
		}
	}
}
