// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tripsync/internal/logging"
	"github.com/tomtom215/tripsync/internal/metrics"
)

// clientIDCounter generates unique, monotonically increasing IDs for clients.
// DETERMINISM: broadcasts iterate clients in ID order.
var clientIDCounter atomic.Uint64

// Client is a middleman between the websocket connection and the hub
type Client struct {
	id            uint64
	correlationID string
	hub           *Hub
	conn          *websocket.Conn
	send          chan Frame
	limiter       *rate.Limiter

	// ctx is canceled when the hub closes the client; it bounds the CMS
	// write and any blocked event submission.
	ctx    context.Context
	cancel context.CancelFunc

	open      atomic.Bool
	closeOnce sync.Once
}

// NewClient creates a new Client with a unique deterministic ID.
// conn may be nil in tests that drive the hub without a transport.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := clientIDCounter.Add(1)
	correlationID := uuid.NewString()[:8]

	ctx := logging.ContextWithConnectionID(context.Background(), id)
	ctx = logging.ContextWithCorrelationID(ctx, correlationID)
	ctx, cancel := context.WithCancel(ctx)

	c := &Client{
		id:            id,
		correlationID: correlationID,
		hub:           hub,
		conn:          conn,
		send:          make(chan Frame, hub.cfg.SendBuffer),
		ctx:           ctx,
		cancel:        cancel,
	}
	if hub.cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(hub.cfg.RateLimit), hub.cfg.RateLimitBurst)
	}
	c.open.Store(true)
	return c
}

// ID returns the client's unique identifier for deterministic ordering
func (c *Client) ID() uint64 {
	return c.id
}

// CorrelationID returns the short ID used to tie log lines to this connection.
func (c *Client) CorrelationID() string {
	return c.correlationID
}

// IsOpen reports whether the transport is still usable. It turns false as
// soon as either pump fails or the hub closes the client.
func (c *Client) IsOpen() bool {
	return c.open.Load()
}

// enqueue offers a frame without blocking. Only the hub goroutine calls it.
func (c *Client) enqueue(f Frame) bool {
	if !c.open.Load() {
		return false
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue; the write pump then sends a close frame
// and tears down the transport. Only the hub goroutine calls it.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		close(c.send)
		c.cancel()
	})
}

// Serve registers the client and starts its pumps. It returns immediately.
func (c *Client) Serve() {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

// readPump pumps frames from the websocket connection to the router
func (c *Client) readPump() {
	defer func() {
		c.open.Store(false)
		c.hub.Unregister(c)
		_ = c.conn.Close() // best-effort cleanup
	}()

	pongWait := c.hub.cfg.PongWait
	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Ctx(c.ctx).Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				metrics.RecordWSError("read")
				logging.Ctx(c.ctx).Warn().Err(err).Msg("unexpected websocket close error")
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		c.hub.handleFrame(c, data)
	}
}

// writePump pumps frames from the hub to the websocket connection
func (c *Client) writePump() {
	writeWait := c.hub.cfg.WriteWait
	ticker := time.NewTicker(c.hub.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		c.open.Store(false)
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Ctx(c.ctx).Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame.Data); err != nil {
				metrics.RecordWSError("write")
				logging.Ctx(c.ctx).Debug().Err(err).Msg("failed to write websocket frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Ctx(c.ctx).Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
