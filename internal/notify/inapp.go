package notify

import (
	"context"

	"github.com/gigmesh/match-engine/internal/models"
)

// InAppChannel publishes notifications to the websocket hub. Delivery to a
// hub is local and cannot fail; freelancers without an open dashboard session
// simply see the invitation on their next fetch.
type InAppChannel struct {
	hub *Hub
}

// NewInAppChannel creates an in-app channel backed by the given hub.
func NewInAppChannel(hub *Hub) *InAppChannel {
	return &InAppChannel{hub: hub}
}

// Name returns the channel name.
func (c *InAppChannel) Name() string {
	return models.ChannelInApp
}

// Send publishes the notification to connected subscribers.
func (c *InAppChannel) Send(ctx context.Context, n *models.Notification) error {
	c.hub.Publish(n)
	return nil
}
