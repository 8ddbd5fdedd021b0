package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gigmesh/match-engine/internal/notify"
)

// StreamHandler serves the in-app notification websocket.
type StreamHandler struct {
	hub    *notify.Hub
	logger *slog.Logger

	upgrader websocket.Upgrader
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(hub *notify.Hub, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The bearer token already authenticated the request; the
			// dashboard origin is enforced by the CORS layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

// Stream handles GET /v1/freelancers/{freelancerID}/notifications/stream.
// Each connected dashboard session receives the freelancer's match
// notifications as JSON messages.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	freelancerID, ok := authorizeFreelancer(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "freelancer_id", freelancerID, "error", err)
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(freelancerID)
	defer h.hub.Unsubscribe(sub)

	h.logger.Info("notification stream opened",
		"freelancer_id", freelancerID,
		"subscriber_id", sub.ID,
	)

	// Drain client frames so close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(streamPingInterval)
	defer pingTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("notification stream closed", "freelancer_id", freelancerID)
			return
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case n, open := <-sub.Ch:
			if !open {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(n); err != nil {
				h.logger.Debug("writing notification to stream failed",
					"freelancer_id", freelancerID,
					"error", err,
				)
				return
			}
		}
	}
}
