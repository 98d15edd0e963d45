package ws

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const (
	// sendBuffer bounds the per-client outbound queue. Broadcast drops
	// messages for a client whose queue is full rather than block the
	// monitor loop on a slow reader.
	sendBuffer = 256

	writeTimeout = 5 * time.Second
)

// Client is one connected WebSocket subscriber.
type Client struct {
	conn       *websocket.Conn
	remoteAddr string
	send       chan Message
	logger     *zap.Logger
}

func newClient(conn *websocket.Conn, remoteAddr string, logger *zap.Logger) *Client {
	return &Client{
		conn:       conn,
		remoteAddr: remoteAddr,
		send:       make(chan Message, sendBuffer),
		logger:     logger,
	}
}

// writeLoop drains the send queue onto the wire. It exits when the hub
// closes the queue or the connection context ends.
func (c *Client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(ctx, msg); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) write(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, msg)
}

// readLoop discards inbound frames. The stream is one-way; reading only
// serves to notice the peer going away.
func (c *Client) readLoop(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}
