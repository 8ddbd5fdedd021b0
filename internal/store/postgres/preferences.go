package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/gigmesh/match-engine/internal/models"
)

// PreferenceStore implements store.PreferenceStore using PostgreSQL.
type PreferenceStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *PreferenceStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Get retrieves the preference for a freelancer. A freelancer that has never
// configured matching gets the default preference.
func (s *PreferenceStore) Get(ctx context.Context, freelancerID string) (*models.MatchPreference, error) {
	query := `
		SELECT freelancer_id, availability_status, availability_mode, timezone,
		       daily_match_limit, auto_accept_threshold,
		       quiet_hours_start, quiet_hours_end, snoozed_until,
		       channels, escalation_contact, notes, updated_at
		FROM match_preferences WHERE freelancer_id = $1
	`

	var pref models.MatchPreference
	var status, mode string
	var dailyLimit sql.NullInt64
	var quietStart, quietEnd, escalation, notes sql.NullString
	var snoozedUntil sql.NullTime

	err := s.conn().QueryRowContext(ctx, query, freelancerID).Scan(
		&pref.FreelancerID, &status, &mode, &pref.Timezone,
		&dailyLimit, &pref.AutoAcceptThreshold,
		&quietStart, &quietEnd, &snoozedUntil,
		pq.Array(&pref.Channels), &escalation, &notes, &pref.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultPreference(freelancerID), nil
	}
	if err != nil {
		return nil, err
	}

	pref.AvailabilityStatus = models.AvailabilityStatus(status)
	pref.AvailabilityMode = models.AvailabilityMode(mode)
	if dailyLimit.Valid {
		limit := int(dailyLimit.Int64)
		pref.DailyMatchLimit = &limit
	}
	pref.QuietHoursStart = quietStart.String
	pref.QuietHoursEnd = quietEnd.String
	if snoozedUntil.Valid {
		pref.SnoozedUntil = &snoozedUntil.Time
	}
	pref.EscalationContact = escalation.String
	pref.Notes = notes.String

	return &pref, nil
}

// Upsert persists the full preference record.
func (s *PreferenceStore) Upsert(ctx context.Context, pref *models.MatchPreference) error {
	if pref.UpdatedAt.IsZero() {
		pref.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO match_preferences (
			freelancer_id, availability_status, availability_mode, timezone,
			daily_match_limit, auto_accept_threshold,
			quiet_hours_start, quiet_hours_end, snoozed_until,
			channels, escalation_contact, notes, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (freelancer_id) DO UPDATE SET
			availability_status = EXCLUDED.availability_status,
			availability_mode = EXCLUDED.availability_mode,
			timezone = EXCLUDED.timezone,
			daily_match_limit = EXCLUDED.daily_match_limit,
			auto_accept_threshold = EXCLUDED.auto_accept_threshold,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			snoozed_until = EXCLUDED.snoozed_until,
			channels = EXCLUDED.channels,
			escalation_contact = EXCLUDED.escalation_contact,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`

	var dailyLimit any
	if pref.DailyMatchLimit != nil {
		dailyLimit = *pref.DailyMatchLimit
	}

	_, err := s.conn().ExecContext(ctx, query,
		pref.FreelancerID,
		string(pref.AvailabilityStatus),
		string(pref.AvailabilityMode),
		pref.Timezone,
		dailyLimit,
		pref.AutoAcceptThreshold,
		nullString(pref.QuietHoursStart),
		nullString(pref.QuietHoursEnd),
		pref.SnoozedUntil,
		pq.Array(pref.Channels),
		nullString(pref.EscalationContact),
		nullString(pref.Notes),
		pref.UpdatedAt,
	)
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
