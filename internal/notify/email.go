package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gigmesh/match-engine/internal/models"
)

// EmailChannel delivers notifications through the platform mailer webhook.
// The engine does not speak SMTP itself; the mailer service owns templating
// and address resolution.
type EmailChannel struct {
	endpoint string
	client   *http.Client
}

// NewEmailChannel creates an email channel posting to the given mailer
// endpoint.
func NewEmailChannel(endpoint string) *EmailChannel {
	return &EmailChannel{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the channel name.
func (c *EmailChannel) Name() string {
	return models.ChannelEmail
}

// Send posts the notification to the mailer webhook.
func (c *EmailChannel) Send(ctx context.Context, n *models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building mailer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to mailer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mailer returned status %d", resp.StatusCode)
	}
	return nil
}
