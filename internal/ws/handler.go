package ws

import (
	"context"
	"net/http"

	"github.com/HollowOak/sitewatch/internal/watch"
	"github.com/HollowOak/sitewatch/pkg/plugin"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Handler owns the hub and the HTTP upgrade endpoint for the live
// monitor stream.
type Handler struct {
	hub    *Hub
	bus    plugin.EventBus
	logger *zap.Logger
}

// Handler plugs into server.New as an extra route registrar.
var _ interface{ RegisterRoutes(mux *http.ServeMux) } = (*Handler)(nil)

// NewHandler wires a hub to the event bus. A nil bus is allowed; the
// endpoint then serves connections that never receive broadcasts.
func NewHandler(bus plugin.EventBus, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:    NewHub(logger),
		bus:    bus,
		logger: logger,
	}
	h.subscribe()
	return h
}

// RegisterRoutes mounts the stream endpoint on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/watch", h.handleWatchStream)
}

// handleWatchStream upgrades the request and streams check results and
// alerts until the client goes away.
func (h *Handler) handleWatchStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Any origin may subscribe; the stream carries read-only status data.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := newClient(conn, r.RemoteAddr, h.logger)
	h.hub.Register(client)

	ctx := r.Context()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		client.writeLoop(ctx)
	}()

	// Blocks until the peer disconnects.
	client.readLoop(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-writerDone
}

// subscribe forwards monitor events to connected clients.
func (h *Handler) subscribe() {
	if h.bus == nil {
		return
	}

	h.bus.Subscribe(watch.TopicCheckCompleted, h.onCheck)
	h.forwardAlerts(watch.TopicSiteDown, MessageSiteDown)
	h.forwardAlerts(watch.TopicSiteRecovered, MessageSiteRecovered)
}

func (h *Handler) onCheck(_ context.Context, ev plugin.Event) {
	check, ok := ev.Payload.(watch.CheckEvent)
	if !ok {
		return
	}
	h.hub.Broadcast(Message{
		Type:      MessageCheckCompleted,
		URL:       check.URL,
		Timestamp: ev.Timestamp,
		Data: CheckCompletedData{
			Outcome:             check.Outcome,
			StatusCode:          check.StatusCode,
			LatencyMs:           check.LatencyMs,
			Status:              check.Status,
			ConsecutiveFailures: check.ConsecutiveFailures,
		},
	})
}

// forwardAlerts relays alert payloads published on topic as msgType messages.
func (h *Handler) forwardAlerts(topic string, msgType MessageType) {
	h.bus.Subscribe(topic, func(_ context.Context, ev plugin.Event) {
		alert, ok := ev.Payload.(watch.Alert)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      msgType,
			URL:       alert.URL,
			Timestamp: ev.Timestamp,
			Data:      AlertData{Alert: &alert},
		})
	})
}
