package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/gigmesh/match-engine/internal/api/errors"
	"github.com/gigmesh/match-engine/internal/api/handlers"
	"github.com/gigmesh/match-engine/internal/auth"
	"github.com/gigmesh/match-engine/internal/engine"
	"github.com/gigmesh/match-engine/internal/models"
	"github.com/gigmesh/match-engine/internal/notify"
	"github.com/gigmesh/match-engine/internal/store/storetest"
	"github.com/gigmesh/match-engine/pkg/config"
)

type testEnv struct {
	server *Server
	store  *storetest.Store
	hub    *notify.Hub
	auth   *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:       "test-secret-at-least-32-characters!!",
		JWTExpiry:       time.Hour,
		APIHost:         "127.0.0.1",
		APIPort:         0,
		ShutdownTimeout: 5 * time.Second,
		AllowedOrigins:  []string{"*"},
		Engine: config.EngineConfig{
			ResponseTTL:         72 * time.Hour,
			SweepInterval:       time.Minute,
			EvaluateInterval:    time.Minute,
			ForwardInterval:     15 * time.Second,
			DispatchMaxAttempts: 1,
			DispatchBackoff:     time.Millisecond,
		},
	}

	st := storetest.New()
	authService := auth.NewService(&auth.Config{
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenExpiry: cfg.JWTExpiry,
	}, nil)

	hub := notify.NewHub(nil)
	dispatcher := notify.NewDispatcher(&notify.Config{
		MaxAttempts: 1,
		Backoff:     time.Millisecond,
		SendTimeout: time.Second,
	}, nil, notify.NewInAppChannel(hub))

	autoAccept := engine.NewAutoAccept(st, nil)
	scheduler := engine.NewScheduler(st, dispatcher, autoAccept, nil)
	preferences := engine.NewPreferences(st, nil)
	preferences.OnChange(scheduler.ProcessPendingFor)

	server := NewServer(cfg, &Deps{
		Store:       st,
		Auth:        authService,
		Preferences: preferences,
		Scheduler:   scheduler,
		Responder:   engine.NewResponder(st, nil, nil),
		Ledger:      engine.NewLedger(st, nil),
		Hub:         hub,
	}, nil)

	return &testEnv{server: server, store: st, hub: hub, auth: authService}
}

func (e *testEnv) token(t *testing.T, subject, scope string) string {
	t.Helper()
	token, err := e.auth.GenerateToken(subject, scope)
	require.NoError(t, err)
	return token
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *apierrors.APIError {
	t.Helper()
	var apiErr apierrors.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return &apiErr
}

func TestRequestsRequireAToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/v1/freelancers/fr-1/overview", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(t, http.MethodGet, "/v1/freelancers/fr-1/overview", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateInvitation(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "sourcing-svc", auth.ScopeSourcing)

	rec := env.request(t, http.MethodPost, "/v1/invitations", token, map[string]any{
		"freelancer_id": "fr-1",
		"target_id":     "job-1",
		"score":         64,
		"proposed_rate": 110.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var inv models.MatchInvitation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.NotEmpty(t, inv.ID)
	// The default preference has no constraints, so the invitation was
	// promoted during the request.
	assert.Equal(t, models.StatusNotified, inv.Status)
	assert.NotNil(t, inv.NotifiedAt)
}

func TestCreateInvitationAutoAccepts(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedPreference(&models.MatchPreference{
		FreelancerID:        "fr-1",
		AvailabilityStatus:  models.AvailabilityAvailable,
		Timezone:            "UTC",
		AutoAcceptThreshold: 70,
	})
	token := env.token(t, "sourcing-svc", auth.ScopeSourcing)

	rec := env.request(t, http.MethodPost, "/v1/invitations", token, map[string]any{
		"freelancer_id": "fr-1",
		"target_id":     "job-1",
		"score":         82,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var inv models.MatchInvitation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, models.StatusAccepted, inv.Status)
	require.NotNil(t, inv.Response)
	assert.True(t, inv.Response.AutoAccepted)
}

func TestCreateInvitationRequiresSourcingScope(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "fr-1", auth.ScopeFreelancer)

	rec := env.request(t, http.MethodPost, "/v1/invitations", token, map[string]any{
		"freelancer_id": "fr-1",
		"target_id":     "job-1",
		"score":         50,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateInvitationValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "sourcing-svc", auth.ScopeSourcing)

	tests := []map[string]any{
		{"target_id": "job-1", "score": 50},                           // missing freelancer
		{"freelancer_id": "fr-1", "score": 50},                        // missing target
		{"freelancer_id": "fr-1", "target_id": "job-1", "score": -1},  // score low
		{"freelancer_id": "fr-1", "target_id": "job-1", "score": 101}, // score high
	}

	for _, body := range tests {
		rec := env.request(t, http.MethodPost, "/v1/invitations", token, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %v", body)
		assert.Equal(t, apierrors.CodeValidationError, decodeError(t, rec).Code)
	}
}

func TestFreelancerCannotTouchOtherFreelancers(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "fr-2", auth.ScopeFreelancer)

	for _, path := range []string{
		"/v1/freelancers/fr-1/overview",
		"/v1/freelancers/fr-1/matches",
		"/v1/freelancers/fr-1/preferences",
	} {
		rec := env.request(t, http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestGetPreferencesReturnsDefaults(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "fr-1", auth.ScopeFreelancer)

	rec := env.request(t, http.MethodGet, "/v1/freelancers/fr-1/preferences", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pref models.MatchPreference
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pref))
	assert.Equal(t, models.AvailabilityAvailable, pref.AvailabilityStatus)
	assert.Equal(t, 100, pref.AutoAcceptThreshold)
}

func TestUpdatePreferences(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "fr-1", auth.ScopeFreelancer)

	rec := env.request(t, http.MethodPatch, "/v1/freelancers/fr-1/preferences", token, map[string]any{
		"auto_accept_threshold": 85,
		"quiet_hours_start":     "22:00",
		"quiet_hours_end":       "06:00",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pref models.MatchPreference
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pref))
	assert.Equal(t, 85, pref.AutoAcceptThreshold)
	assert.Equal(t, "22:00", pref.QuietHoursStart)
}

func TestUpdatePreferencesValidationDetail(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "fr-1", auth.ScopeFreelancer)

	rec := env.request(t, http.MethodPatch, "/v1/freelancers/fr-1/preferences", token, map[string]any{
		"auto_accept_threshold": 150,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	apiErr := decodeError(t, rec)
	assert.Equal(t, apierrors.CodeValidationError, apiErr.Code)
	assert.Contains(t, apiErr.Details, "fields")
}

func TestUpdatePreferencesReleasesSuppressedInvitations(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedPreference(&models.MatchPreference{
		FreelancerID:        "fr-1",
		AvailabilityStatus:  models.AvailabilityOffline,
		Timezone:            "UTC",
		AutoAcceptThreshold: 100,
	})
	inv := env.store.SeedInvitation(&models.MatchInvitation{
		FreelancerID: "fr-1",
		TargetID:     "job-1",
		Score:        40,
		CreatedAt:    time.Now().UTC().Add(-time.Minute),
	})
	token := env.token(t, "fr-1", auth.ScopeFreelancer)

	rec := env.request(t, http.MethodPatch, "/v1/freelancers/fr-1/preferences", token, map[string]any{
		"availability_status": "available",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, models.StatusNotified, env.store.Invitation(inv.ID).Status)
}

func TestListMatches(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "fr-1", auth.ScopeFreelancer)

	env.store.SeedInvitation(&models.MatchInvitation{
		FreelancerID: "fr-1", TargetID: "job-1", Status: models.StatusNotified,
	})
	env.store.SeedInvitation(&models.MatchInvitation{
		FreelancerID: "fr-1", TargetID: "job-2", Status: models.StatusDeclined,
	})
	env.store.SeedInvitation(&models.MatchInvitation{
		FreelancerID: "fr-other", TargetID: "job-3", Status: models.StatusNotified,
	})

	rec := env.request(t, http.MethodGet, "/v1/freelancers/fr-1/matches", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.MatchListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Entries, 1)
	assert.Equal(t, 1, resp.Pagination.TotalCount)

	rec = env.request(t, http.MethodGet, "/v1/freelancers/fr-1/matches?include_historical=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Entries, 2)
}

func TestRespondAcceptAndConflict(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "fr-1", auth.ScopeFreelancer)

	inv := env.store.SeedInvitation(&models.MatchInvitation{
		FreelancerID: "fr-1", TargetID: "job-1", Status: models.StatusNotified,
	})

	rec := env.request(t, http.MethodPost, "/v1/freelancers/fr-1/matches/"+inv.ID+"/respond", token,
		map[string]any{"status": "accepted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resolved models.MatchInvitation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Equal(t, models.StatusAccepted, resolved.Status)

	// A second response conflicts.
	rec = env.request(t, http.MethodPost, "/v1/freelancers/fr-1/matches/"+inv.ID+"/respond", token,
		map[string]any{"status": "declined", "reason_code": "capacity"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apierrors.CodeConflict, decodeError(t, rec).Code)
}

func TestRespondDecline(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "fr-1", auth.ScopeFreelancer)

	inv := env.store.SeedInvitation(&models.MatchInvitation{
		FreelancerID: "fr-1", TargetID: "job-1", Status: models.StatusNotified,
	})

	rec := env.request(t, http.MethodPost, "/v1/freelancers/fr-1/matches/"+inv.ID+"/respond", token,
		map[string]any{"status": "declined", "reason_code": "budget", "response_notes": "rate too low"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resolved models.MatchInvitation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Equal(t, models.StatusDeclined, resolved.Status)
	require.NotNil(t, resolved.Response)
	assert.Equal(t, "Budget too low", resolved.Response.ReasonLabel)
}

func TestRespondValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "fr-1", auth.ScopeFreelancer)

	inv := env.store.SeedInvitation(&models.MatchInvitation{
		FreelancerID: "fr-1", TargetID: "job-1", Status: models.StatusNotified,
	})

	// Unknown top-level status.
	rec := env.request(t, http.MethodPost, "/v1/freelancers/fr-1/matches/"+inv.ID+"/respond", token,
		map[string]any{"status": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Decline with an unknown reason code.
	rec = env.request(t, http.MethodPost, "/v1/freelancers/fr-1/matches/"+inv.ID+"/respond", token,
		map[string]any{"status": "declined", "reason_code": "vibes"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown invitation.
	rec = env.request(t, http.MethodPost, "/v1/freelancers/fr-1/matches/nope/respond", token,
		map[string]any{"status": "accepted"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOverview(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "fr-1", auth.ScopeFreelancer)

	notified := time.Now().UTC().Add(-time.Hour)
	responded := notified.Add(30 * time.Minute)
	env.store.SeedInvitation(&models.MatchInvitation{
		FreelancerID: "fr-1", TargetID: "job-1", Status: models.StatusPending,
	})
	env.store.SeedInvitation(&models.MatchInvitation{
		FreelancerID: "fr-1", TargetID: "job-2", Status: models.StatusNotified,
	})
	env.store.SeedInvitation(&models.MatchInvitation{
		FreelancerID: "fr-1", TargetID: "job-3", Status: models.StatusAccepted,
		NotifiedAt: &notified, RespondedAt: &responded,
	})

	rec := env.request(t, http.MethodGet, "/v1/freelancers/fr-1/overview", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.OverviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Summary.LiveInvites)
	assert.Equal(t, 1, resp.Summary.PendingDecisions)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 1, resp.Stats.Accepted)
	require.NotNil(t, resp.Preference)
}

func TestHealthEndpointNeedsNoAuth(t *testing.T) {
	env := newTestEnv(t)

	// No database behind the checker in tests; the endpoint must still
	// answer rather than demand a token.
	rec := env.request(t, http.MethodGet, "/health", "", nil)
	assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
}

func TestNotificationStream(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "fr-1", auth.ScopeFreelancer)

	srv := httptest.NewServer(env.server.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/freelancers/fr-1/notifications/stream"
	header := http.Header{"Authorization": []string{"Bearer " + token}}

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	// Wait for the subscription to register before publishing.
	require.Eventually(t, func() bool { return env.hub.SubscriberCount() == 1 },
		time.Second, 5*time.Millisecond)

	env.hub.Publish(&models.Notification{
		InvitationID: "inv-1",
		FreelancerID: "fr-1",
		TargetID:     "job-1",
		Score:        88,
		SentAt:       time.Now().UTC(),
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var n models.Notification
	require.NoError(t, conn.ReadJSON(&n))
	assert.Equal(t, "inv-1", n.InvitationID)
	assert.Equal(t, 88, n.Score)
}
