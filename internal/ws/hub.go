// Package ws streams live monitor events to WebSocket subscribers.
package ws

import (
	"sync"

	"go.uber.org/zap"
)

// Hub tracks connected clients and fans broadcast messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds c to the broadcast set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", zap.String("remote_addr", c.remoteAddr))
}

// Unregister removes c and closes its send queue. Unregistering a client
// twice, or one that was never registered, is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, known := h.clients[c]
	if known {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if known {
		h.logger.Debug("websocket client disconnected", zap.String("remote_addr", c.remoteAddr))
	}
}

// Broadcast queues msg for every connected client. Clients whose queue is
// full miss the message.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("dropped broadcast for slow websocket clients",
			zap.Int("clients", dropped),
			zap.String("type", string(msg.Type)),
		)
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
