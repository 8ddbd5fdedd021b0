// Package storetest provides an in-memory store.Store implementation for
// tests. It mirrors the transition guarantees of the postgres store, including
// the guarded status write.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gigmesh/match-engine/internal/models"
	"github.com/gigmesh/match-engine/internal/store"
)

// defaultListLimit matches the postgres store's DefaultPageSize so that
// ListByStatus behaves the same against both implementations.
const defaultListLimit = 25

// Store is an in-memory store.Store. All methods are safe for concurrent use.
// Setting Err makes every operation fail with it, for error-path tests.
type Store struct {
	mu          sync.Mutex
	prefs       map[string]*models.MatchPreference
	invitations map[string]*models.MatchInvitation

	// Err, when set, is returned by every store operation.
	Err error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		prefs:       make(map[string]*models.MatchPreference),
		invitations: make(map[string]*models.MatchInvitation),
	}
}

// Preferences returns the preference store.
func (s *Store) Preferences() store.PreferenceStore { return (*prefStore)(s) }

// Invitations returns the invitation store.
func (s *Store) Invitations() store.InvitationStore { return (*invStore)(s) }

// WithTx runs fn against the same store. The in-memory store has no real
// transactions; per-operation locking is enough for the code under test.
func (s *Store) WithTx(ctx context.Context, fn func(store.Store) error) error {
	if s.Err != nil {
		return s.Err
	}
	return fn(s)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// SeedPreference stores a preference directly.
func (s *Store) SeedPreference(pref *models.MatchPreference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[pref.FreelancerID] = copyPref(pref)
}

// SeedInvitation stores an invitation directly, filling ID and timestamps the
// way Create would.
func (s *Store) SeedInvitation(inv *models.MatchInvitation) *models.MatchInvitation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := copyInv(inv)
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = models.StatusPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.invitations[c.ID] = c
	return copyInv(c)
}

// Invitation returns the stored invitation by ID, or nil.
func (s *Store) Invitation(id string) *models.MatchInvitation {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return nil
	}
	return copyInv(inv)
}

type prefStore Store

func (s *prefStore) Get(ctx context.Context, freelancerID string) (*models.MatchPreference, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if pref, ok := s.prefs[freelancerID]; ok {
		return copyPref(pref), nil
	}
	return models.DefaultPreference(freelancerID), nil
}

func (s *prefStore) Upsert(ctx context.Context, pref *models.MatchPreference) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[pref.FreelancerID] = copyPref(pref)
	return nil
}

type invStore Store

func (s *invStore) Create(ctx context.Context, inv *models.MatchInvitation) error {
	if s.Err != nil {
		return s.Err
	}
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
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invitations[inv.ID] = copyInv(inv)
	return nil
}

func (s *invStore) Get(ctx context.Context, id string) (*models.MatchInvitation, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyInv(inv), nil
}

func (s *invStore) ListByFreelancer(ctx context.Context, freelancerID string, opts store.ListOptions) ([]*models.MatchInvitation, *store.Pagination, error) {
	if s.Err != nil {
		return nil, nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.MatchInvitation
	for _, inv := range s.invitations {
		if inv.FreelancerID != freelancerID {
			continue
		}
		if !opts.IncludeHistorical && inv.Status.IsTerminal() {
			continue
		}
		all = append(all, copyInv(inv))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 {
		pageSize = 25
	}

	total := len(all)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return all[start:end], &store.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func (s *invStore) ListByStatus(ctx context.Context, statuses []models.InvitationStatus, createdBefore time.Time, limit int) ([]*models.MatchInvitation, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[models.InvitationStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	var out []*models.MatchInvitation
	for _, inv := range s.invitations {
		if want[inv.Status] && inv.CreatedAt.Before(createdBefore) {
			out = append(out, copyInv(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit < 1 {
		limit = defaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *invStore) ListPending(ctx context.Context, freelancerID string) ([]*models.MatchInvitation, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.MatchInvitation
	for _, inv := range s.invitations {
		if inv.FreelancerID == freelancerID && inv.Status == models.StatusPending {
			out = append(out, copyInv(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *invStore) ListResolved(ctx context.Context, freelancerID string) ([]*models.MatchInvitation, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.MatchInvitation
	for _, inv := range s.invitations {
		if inv.FreelancerID == freelancerID && inv.Status.IsTerminal() {
			out = append(out, copyInv(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *invStore) CountNotifiedSince(ctx context.Context, freelancerID string, since time.Time) (int, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, inv := range s.invitations {
		if inv.FreelancerID != freelancerID || inv.NotifiedAt == nil {
			continue
		}
		if !inv.NotifiedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *invStore) CountOpen(ctx context.Context, freelancerID string) (int, int, error) {
	if s.Err != nil {
		return 0, 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, notified := 0, 0
	for _, inv := range s.invitations {
		if inv.FreelancerID != freelancerID {
			continue
		}
		switch inv.Status {
		case models.StatusPending:
			pending++
		case models.StatusNotified:
			notified++
		}
	}
	return pending, notified, nil
}

func (s *invStore) TransitionStatus(ctx context.Context, inv *models.MatchInvitation, from models.InvitationStatus) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.invitations[inv.ID]
	if !ok {
		return store.ErrNotFound
	}
	if stored.Status != from {
		return store.ErrStatusConflict
	}

	inv.UpdatedAt = time.Now().UTC()
	s.invitations[inv.ID] = copyInv(inv)
	return nil
}

func copyPref(p *models.MatchPreference) *models.MatchPreference {
	c := *p
	if p.DailyMatchLimit != nil {
		v := *p.DailyMatchLimit
		c.DailyMatchLimit = &v
	}
	if p.SnoozedUntil != nil {
		v := *p.SnoozedUntil
		c.SnoozedUntil = &v
	}
	c.Channels = append([]string(nil), p.Channels...)
	return &c
}

func copyInv(i *models.MatchInvitation) *models.MatchInvitation {
	c := *i
	if i.NotifiedAt != nil {
		v := *i.NotifiedAt
		c.NotifiedAt = &v
	}
	if i.RespondedAt != nil {
		v := *i.RespondedAt
		c.RespondedAt = &v
	}
	if i.Response != nil {
		r := *i.Response
		if i.Response.ReasonCode != nil {
			code := *i.Response.ReasonCode
			r.ReasonCode = &code
		}
		if i.Response.CompletionValue != nil {
			v := *i.Response.CompletionValue
			r.CompletionValue = &v
		}
		c.Response = &r
	}
	return &c
}
