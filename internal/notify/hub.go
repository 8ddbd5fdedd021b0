package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gigmesh/match-engine/internal/models"
)

// Subscriber represents one connected in-app client.
type Subscriber struct {
	ID           string
	FreelancerID string
	Ch           chan *models.Notification
	CreatedAt    time.Time
}

// Hub manages in-app notification subscriptions and publishing. Each
// dashboard session subscribes for its freelancer; publishing never blocks.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber // subscriber ID -> subscriber
	logger      *slog.Logger
}

// NewHub creates a notification hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		logger:      logger,
	}
}

// Subscribe creates a new subscription for a freelancer's notifications.
func (h *Hub) Subscribe(freelancerID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID:           uuid.New().String(),
		FreelancerID: freelancerID,
		Ch:           make(chan *models.Notification, 16),
		CreatedAt:    time.Now(),
	}

	h.subscribers[sub.ID] = sub
	h.logger.Debug("subscriber added",
		"subscriber_id", sub.ID,
		"freelancer_id", freelancerID,
	)

	return sub
}

// Unsubscribe removes a subscription.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.subscribers[sub.ID]; exists {
		close(sub.Ch)
		delete(h.subscribers, sub.ID)
		h.logger.Debug("subscriber removed", "subscriber_id", sub.ID)
	}
}

// Publish sends a notification to every subscriber of its freelancer.
// Subscribers with full channels are skipped rather than blocked on.
func (h *Hub) Publish(n *models.Notification) {
	if n == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		if sub.FreelancerID != n.FreelancerID {
			continue
		}
		select {
		case sub.Ch <- n:
		default:
			h.logger.Warn("subscriber channel full, dropping notification",
				"subscriber_id", sub.ID,
				"invitation_id", n.InvitationID,
			)
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
