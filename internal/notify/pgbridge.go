package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/gigmesh/match-engine/internal/models"
)

// pgNotifyChannel is the Postgres NOTIFY channel carrying in-app
// notifications between processes. The worker publishes on it; the API
// process listens and relays into its websocket hub.
const pgNotifyChannel = "match_notifications"

// Execer is satisfied by *sql.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PGChannel is the in-app channel for processes that do not own the
// websocket hub. It hands the notification to Postgres; the hub-owning
// process picks it up through a Bridge.
type PGChannel struct {
	db Execer
}

// NewPGChannel creates an in-app channel publishing through pg_notify.
func NewPGChannel(db Execer) *PGChannel {
	return &PGChannel{db: db}
}

// Name returns the channel name.
func (c *PGChannel) Name() string {
	return models.ChannelInApp
}

// Send publishes the notification payload on the NOTIFY channel.
func (c *PGChannel) Send(ctx context.Context, n *models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, pgNotifyChannel, string(payload)); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	return nil
}

// Bridge relays pg_notify payloads from other processes into the local hub,
// so worker-promoted invitations still reach connected dashboard sessions.
type Bridge struct {
	dsn    string
	hub    *Hub
	logger *slog.Logger

	listener *pq.Listener
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
}

// NewBridge creates a bridge from the given database to the hub.
func NewBridge(dsn string, hub *Hub, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		dsn:    dsn,
		hub:    hub,
		logger: logger,
	}
}

// Start opens the listener and begins relaying notifications.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}

	listener := pq.NewListener(b.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			b.logger.Warn("notification listener event", "event", ev, "error", err)
		}
	})
	if err := listener.Listen(pgNotifyChannel); err != nil {
		listener.Close()
		return fmt.Errorf("listening on %s: %w", pgNotifyChannel, err)
	}

	b.listener = listener
	b.running = true
	b.stopChan = make(chan struct{})
	go b.run(ctx)

	b.logger.Info("notification bridge started", "channel", pgNotifyChannel)
	return nil
}

// Stop closes the listener and stops the relay loop.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	close(b.stopChan)
	if err := b.listener.Close(); err != nil {
		b.logger.Warn("closing notification listener", "error", err)
	}
}

func (b *Bridge) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case n := <-b.listener.Notify:
			// The listener sends nil after a reconnect; notifications
			// raised while disconnected are gone, which is acceptable
			// for a live stream backed by fetchable state.
			if n == nil {
				continue
			}
			b.relay(n.Extra)
		}
	}
}

// relay decodes one pg_notify payload and publishes it to the hub.
func (b *Bridge) relay(payload string) {
	var n models.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		b.logger.Error("discarding malformed notification payload", "error", err)
		return
	}
	b.hub.Publish(&n)
}
