package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigmesh/match-engine/internal/models"
)

func testNotification(freelancerID string) *models.Notification {
	return &models.Notification{
		InvitationID: "inv-1",
		FreelancerID: freelancerID,
		TargetID:     "job-1",
		Score:        77,
		ProposedRate: 95,
		SentAt:       time.Now().UTC(),
	}
}

// flakyChannel fails a fixed number of times before succeeding.
type flakyChannel struct {
	name      string
	failures  int32
	delivered chan *models.Notification
}

func (c *flakyChannel) Name() string { return c.name }

func (c *flakyChannel) Send(ctx context.Context, n *models.Notification) error {
	if atomic.AddInt32(&c.failures, -1) >= 0 {
		return context.DeadlineExceeded
	}
	c.delivered <- n
	return nil
}

func TestDispatcherDeliversToEnabledChannels(t *testing.T) {
	email := &flakyChannel{name: models.ChannelEmail, delivered: make(chan *models.Notification, 1)}
	inApp := &flakyChannel{name: models.ChannelInApp, delivered: make(chan *models.Notification, 1)}
	d := NewDispatcher(&Config{MaxAttempts: 1, Backoff: time.Millisecond, SendTimeout: time.Second},
		nil, email, inApp)

	d.Dispatch(testNotification("fr-1"), []string{models.ChannelEmail})

	select {
	case n := <-email.delivered:
		assert.Equal(t, "inv-1", n.InvitationID)
	case <-time.After(time.Second):
		t.Fatal("email channel did not receive the notification")
	}

	select {
	case <-inApp.delivered:
		t.Fatal("in-app channel was not enabled")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcherRetriesWithBackoff(t *testing.T) {
	ch := &flakyChannel{name: models.ChannelEmail, failures: 2, delivered: make(chan *models.Notification, 1)}
	d := NewDispatcher(&Config{MaxAttempts: 3, Backoff: time.Millisecond, SendTimeout: time.Second}, nil, ch)

	d.Dispatch(testNotification("fr-1"), []string{models.ChannelEmail})

	select {
	case <-ch.delivered:
	case <-time.After(time.Second):
		t.Fatal("delivery was not retried to success")
	}
}

func TestDispatcherAbandonsAfterMaxAttempts(t *testing.T) {
	ch := &flakyChannel{name: models.ChannelEmail, failures: 10, delivered: make(chan *models.Notification, 1)}
	d := NewDispatcher(&Config{MaxAttempts: 2, Backoff: time.Millisecond, SendTimeout: time.Second}, nil, ch)

	d.Dispatch(testNotification("fr-1"), []string{models.ChannelEmail})

	select {
	case <-ch.delivered:
		t.Fatal("delivery should have been abandoned")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatcherSkipsUnknownChannels(t *testing.T) {
	d := NewDispatcher(nil, nil)
	// Must not panic.
	d.Dispatch(testNotification("fr-1"), []string{"sms"})
}

func TestHubPublishReachesMatchingSubscribers(t *testing.T) {
	hub := NewHub(nil)

	mine := hub.Subscribe("fr-1")
	other := hub.Subscribe("fr-2")
	defer hub.Unsubscribe(mine)
	defer hub.Unsubscribe(other)

	assert.Equal(t, 2, hub.SubscriberCount())

	hub.Publish(testNotification("fr-1"))

	select {
	case n := <-mine.Ch:
		assert.Equal(t, "fr-1", n.FreelancerID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the notification")
	}

	select {
	case <-other.Ch:
		t.Fatal("notification leaked to another freelancer")
	default:
	}
}

func TestHubPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("fr-1")
	defer hub.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(testNotification("fr-1"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("fr-1")

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	hub.Unsubscribe(nil)
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHubConcurrentPublishSubscribe(t *testing.T) {
	hub := NewHub(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := hub.Subscribe("fr-1")
			hub.Publish(testNotification("fr-1"))
			hub.Unsubscribe(sub)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestEmailChannelPostsNotification(t *testing.T) {
	received := make(chan *models.Notification, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var n models.Notification
		require.NoError(t, json.NewDecoder(r.Body).Decode(&n))
		received <- &n
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ch := NewEmailChannel(srv.URL)
	assert.Equal(t, models.ChannelEmail, ch.Name())

	err := ch.Send(context.Background(), testNotification("fr-1"))
	require.NoError(t, err)

	n := <-received
	assert.Equal(t, "inv-1", n.InvitationID)
	assert.Equal(t, 77, n.Score)
}

func TestEmailChannelErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewEmailChannel(srv.URL).Send(context.Background(), testNotification("fr-1"))
	assert.Error(t, err)
}

func TestInAppChannelPublishesToHub(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("fr-1")
	defer hub.Unsubscribe(sub)

	ch := NewInAppChannel(hub)
	assert.Equal(t, models.ChannelInApp, ch.Name())

	require.NoError(t, ch.Send(context.Background(), testNotification("fr-1")))

	select {
	case n := <-sub.Ch:
		assert.Equal(t, "inv-1", n.InvitationID)
	case <-time.After(time.Second):
		t.Fatal("hub subscriber did not receive the notification")
	}
}

// recordingExecer captures pg_notify calls.
type recordingExecer struct {
	query string
	args  []any
	err   error
}

func (e *recordingExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	e.query = query
	e.args = args
	return nil, e.err
}

func TestPGChannelPublishesNotification(t *testing.T) {
	execer := &recordingExecer{}
	ch := NewPGChannel(execer)
	assert.Equal(t, models.ChannelInApp, ch.Name())

	require.NoError(t, ch.Send(context.Background(), testNotification("fr-1")))

	assert.Contains(t, execer.query, "pg_notify")
	require.Len(t, execer.args, 2)
	assert.Equal(t, pgNotifyChannel, execer.args[0])

	var n models.Notification
	require.NoError(t, json.Unmarshal([]byte(execer.args[1].(string)), &n))
	assert.Equal(t, "inv-1", n.InvitationID)
	assert.Equal(t, "fr-1", n.FreelancerID)
}

func TestPGChannelSendError(t *testing.T) {
	ch := NewPGChannel(&recordingExecer{err: context.DeadlineExceeded})
	assert.Error(t, ch.Send(context.Background(), testNotification("fr-1")))
}

func TestBridgeRelaysPayloadToHub(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("fr-1")
	defer hub.Unsubscribe(sub)

	b := NewBridge("", hub, nil)
	payload, err := json.Marshal(testNotification("fr-1"))
	require.NoError(t, err)

	b.relay(string(payload))

	select {
	case n := <-sub.Ch:
		assert.Equal(t, "inv-1", n.InvitationID)
		assert.Equal(t, 77, n.Score)
	case <-time.After(time.Second):
		t.Fatal("bridge did not relay the notification")
	}
}

func TestBridgeDiscardsMalformedPayload(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("fr-1")
	defer hub.Unsubscribe(sub)

	b := NewBridge("", hub, nil)
	b.relay("{not json")

	select {
	case <-sub.Ch:
		t.Fatal("malformed payload must not be published")
	case <-time.After(50 * time.Millisecond):
	}
}
