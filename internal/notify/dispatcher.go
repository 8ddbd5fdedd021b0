// Package notify delivers match notifications to freelancers over their
// enabled channels.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/gigmesh/match-engine/internal/models"
)

// Channel delivers one notification over a single medium.
type Channel interface {
	// Name returns the channel name as stored on preferences.
	Name() string
	// Send delivers the notification. Errors are retried by the dispatcher.
	Send(ctx context.Context, n *models.Notification) error
}

// Config holds dispatcher retry configuration.
type Config struct {
	// MaxAttempts bounds delivery attempts per channel.
	MaxAttempts int
	// Backoff is the initial wait between attempts; it doubles each retry.
	Backoff time.Duration
	// SendTimeout bounds a single delivery attempt.
	SendTimeout time.Duration
}

// DefaultConfig returns the default dispatch retry configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
		SendTimeout: 10 * time.Second,
	}
}

// Dispatcher fans a notification out to the enabled channels. Delivery runs
// off the calling goroutine: channel failures are retried with bounded
// exponential backoff and abandoned after exhaustion, logged only. They never
// reach the caller of the triggering status transition.
type Dispatcher struct {
	channels map[string]Channel
	cfg      *Config
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(cfg *Config, logger *slog.Logger, channels ...Channel) *Dispatcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		channels: make(map[string]Channel, len(channels)),
		cfg:      cfg,
		logger:   logger,
	}
	for _, ch := range channels {
		d.channels[ch.Name()] = ch
	}
	return d
}

// Dispatch sends the notification over each enabled channel in the
// background. An enabled channel with no registered handler is a wiring
// defect and is logged, not silently dropped.
func (d *Dispatcher) Dispatch(n *models.Notification, enabled []string) {
	for _, name := range enabled {
		ch, ok := d.channels[name]
		if !ok {
			d.logger.Warn("no handler for enabled channel",
				"channel", name,
				"invitation_id", n.InvitationID,
			)
			continue
		}
		go d.deliver(ch, n)
	}
}

func (d *Dispatcher) deliver(ch Channel, n *models.Notification) {
	backoff := d.cfg.Backoff
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		err := ch.Send(ctx, n)
		cancel()
		if err == nil {
			d.logger.Debug("notification delivered",
				"channel", ch.Name(),
				"invitation_id", n.InvitationID,
				"attempt", attempt,
			)
			return
		}

		d.logger.Warn("notification delivery failed",
			"channel", ch.Name(),
			"invitation_id", n.InvitationID,
			"attempt", attempt,
			"error", err,
		)

		if attempt < d.cfg.MaxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	d.logger.Error("notification delivery abandoned",
		"channel", ch.Name(),
		"invitation_id", n.InvitationID,
		"attempts", d.cfg.MaxAttempts,
	)
}
