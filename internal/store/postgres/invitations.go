package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gigmesh/match-engine/internal/models"
	"github.com/gigmesh/match-engine/internal/store"
)

// DefaultPageSize caps invitation listings when the caller does not specify one.
const DefaultPageSize = 25

const invitationColumns = `
	id, freelancer_id, target_id, score, proposed_rate, status,
	created_at, updated_at, notified_at, responded_at,
	reason_code, response_notes, completion_value, auto_accepted
`

// InvitationStore implements store.InvitationStore using PostgreSQL.
type InvitationStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *InvitationStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create persists a new invitation.
func (s *InvitationStore) Create(ctx context.Context, inv *models.MatchInvitation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	if inv.UpdatedAt.IsZero() {
		inv.UpdatedAt = now
	}
	if inv.Status == "" {
		inv.Status = models.StatusPending
	}

	query := `
		INSERT INTO match_invitations (
			id, freelancer_id, target_id, score, proposed_rate, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.conn().ExecContext(ctx, query,
		inv.ID, inv.FreelancerID, inv.TargetID, inv.Score, inv.ProposedRate,
		string(inv.Status), inv.CreatedAt, inv.UpdatedAt,
	)
	return err
}

// Get retrieves an invitation by ID.
func (s *InvitationStore) Get(ctx context.Context, id string) (*models.MatchInvitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM match_invitations WHERE id = $1`

	inv, err := scanInvitation(s.conn().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return inv, err
}

// ListByFreelancer retrieves a page of invitations for a freelancer, newest
// first. Open invitations only unless opts.IncludeHistorical is set.
func (s *InvitationStore) ListByFreelancer(ctx context.Context, freelancerID string, opts store.ListOptions) ([]*models.MatchInvitation, *store.Pagination, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	filter := `freelancer_id = $1`
	if !opts.IncludeHistorical {
		filter += ` AND status IN ('pending', 'notified')`
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM match_invitations WHERE ` + filter
	if err := s.conn().QueryRowContext(ctx, countQuery, freelancerID).Scan(&total); err != nil {
		return nil, nil, err
	}

	query := `SELECT ` + invitationColumns + `
		FROM match_invitations WHERE ` + filter + `
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.conn().QueryContext(ctx, query, freelancerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	invitations, err := collectInvitations(rows)
	if err != nil {
		return nil, nil, err
	}

	return invitations, &store.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ListByStatus retrieves invitations in any of the given statuses created
// before the cutoff, oldest first. Used by the sweep and re-evaluation loops.
func (s *InvitationStore) ListByStatus(ctx context.Context, statuses []models.InvitationStatus, createdBefore time.Time, limit int) ([]*models.MatchInvitation, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	if limit < 1 {
		limit = DefaultPageSize
	}

	placeholders := make([]string, len(statuses))
	args := make([]any, 0, len(statuses)+2)
	for i, st := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, string(st))
	}
	args = append(args, createdBefore, limit)

	query := fmt.Sprintf(`SELECT %s
		FROM match_invitations
		WHERE status IN (%s) AND created_at < $%d
		ORDER BY created_at ASC
		LIMIT $%d`,
		invitationColumns, strings.Join(placeholders, ", "), len(statuses)+1, len(statuses)+2)

	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInvitations(rows)
}

// ListPending retrieves every pending invitation for a freelancer, oldest
// first. Uncapped: the preference-change release path must see all of them,
// and one freelancer's pending backlog is small by construction.
func (s *InvitationStore) ListPending(ctx context.Context, freelancerID string) ([]*models.MatchInvitation, error) {
	query := `SELECT ` + invitationColumns + `
		FROM match_invitations
		WHERE freelancer_id = $1 AND status = 'pending'
		ORDER BY created_at ASC`

	rows, err := s.conn().QueryContext(ctx, query, freelancerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInvitations(rows)
}

// ListResolved retrieves all terminal invitations for a freelancer.
func (s *InvitationStore) ListResolved(ctx context.Context, freelancerID string) ([]*models.MatchInvitation, error) {
	query := `SELECT ` + invitationColumns + `
		FROM match_invitations
		WHERE freelancer_id = $1
		  AND status IN ('accepted', 'declined', 'expired', 'reassigned')
		ORDER BY created_at DESC`

	rows, err := s.conn().QueryContext(ctx, query, freelancerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectInvitations(rows)
}

// CountNotifiedSince counts invitations notified for a freelancer at or after
// the given instant. Invitations that have since reached a terminal state
// still count against the daily limit.
func (s *InvitationStore) CountNotifiedSince(ctx context.Context, freelancerID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM match_invitations
		WHERE freelancer_id = $1 AND notified_at IS NOT NULL AND notified_at >= $2
	`

	var count int
	err := s.conn().QueryRowContext(ctx, query, freelancerID, since).Scan(&count)
	return count, err
}

// CountOpen counts pending and notified invitations for a freelancer.
func (s *InvitationStore) CountOpen(ctx context.Context, freelancerID string) (int, int, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'notified')
		FROM match_invitations WHERE freelancer_id = $1
	`

	var pending, notified int
	err := s.conn().QueryRowContext(ctx, query, freelancerID).Scan(&pending, &notified)
	return pending, notified, err
}

// TransitionStatus writes the invitation guarded by the caller's known prior
// status. The WHERE clause doubles as the optimistic-concurrency check: zero
// rows affected means another writer got there first.
func (s *InvitationStore) TransitionStatus(ctx context.Context, inv *models.MatchInvitation, from models.InvitationStatus) error {
	inv.UpdatedAt = time.Now().UTC()

	var reasonCode any
	var responseNotes, completionValue any
	autoAccepted := false
	if inv.Response != nil {
		if inv.Response.ReasonCode != nil {
			reasonCode = string(*inv.Response.ReasonCode)
		}
		if inv.Response.ResponseNotes != "" {
			responseNotes = inv.Response.ResponseNotes
		}
		if inv.Response.CompletionValue != nil {
			completionValue = *inv.Response.CompletionValue
		}
		autoAccepted = inv.Response.AutoAccepted
	}

	query := `
		UPDATE match_invitations
		SET status = $1, updated_at = $2, notified_at = $3, responded_at = $4,
		    reason_code = $5, response_notes = $6, completion_value = $7,
		    auto_accepted = $8
		WHERE id = $9 AND status = $10
	`

	result, err := s.conn().ExecContext(ctx, query,
		string(inv.Status), inv.UpdatedAt, inv.NotifiedAt, inv.RespondedAt,
		reasonCode, responseNotes, completionValue, autoAccepted,
		inv.ID, string(from),
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a concurrent transition.
		var exists bool
		checkErr := s.conn().QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM match_invitations WHERE id = $1)`, inv.ID,
		).Scan(&exists)
		if checkErr != nil {
			return checkErr
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrStatusConflict
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (*models.MatchInvitation, error) {
	var inv models.MatchInvitation
	var status string
	var notifiedAt, respondedAt sql.NullTime
	var reasonCode, responseNotes sql.NullString
	var completionValue sql.NullFloat64
	var autoAccepted bool

	err := row.Scan(
		&inv.ID, &inv.FreelancerID, &inv.TargetID, &inv.Score, &inv.ProposedRate,
		&status, &inv.CreatedAt, &inv.UpdatedAt, &notifiedAt, &respondedAt,
		&reasonCode, &responseNotes, &completionValue, &autoAccepted,
	)
	if err != nil {
		return nil, err
	}

	inv.Status = models.InvitationStatus(status)
	if notifiedAt.Valid {
		inv.NotifiedAt = &notifiedAt.Time
	}
	if respondedAt.Valid {
		inv.RespondedAt = &respondedAt.Time
	}

	if inv.Status.IsTerminal() {
		resp := &models.MatchResponse{
			ResponseNotes: responseNotes.String,
			AutoAccepted:  autoAccepted,
		}
		if reasonCode.Valid {
			code := models.ReasonCode(reasonCode.String)
			resp.ReasonCode = &code
			resp.ReasonLabel = code.Label()
		}
		if completionValue.Valid {
			v := completionValue.Float64
			resp.CompletionValue = &v
		}
		inv.Response = resp
	}

	return &inv, nil
}

func collectInvitations(rows *sql.Rows) ([]*models.MatchInvitation, error) {
	var invitations []*models.MatchInvitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}
