// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package websocket

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tripsync/internal/gateway"
	"github.com/tomtom215/tripsync/internal/logging"
	"github.com/tomtom215/tripsync/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// eventQueueSize bounds the hub's inbound event queue. Producers block
// when it is full, which throttles read pumps rather than dropping events.
const eventQueueSize = 1024

// HubConfig holds the per-connection transport settings and greeting.
type HubConfig struct {
	ServiceName    string
	SendBuffer     int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration

	// RateLimit is inbound frames per second per connection; 0 disables it.
	RateLimit      float64
	RateLimitBurst int
}

// DefaultHubConfig returns the stock transport settings.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		ServiceName:    "TripSync",
		SendBuffer:     256,
		MaxMessageSize: 512 * 1024, // 512 KB
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		RateLimitBurst: 20,
	}
}

// pingPeriod must be less than pongWait so a healthy peer always answers in time.
func (c HubConfig) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

type eventKind int

const (
	eventRegister eventKind = iota
	eventUnregister
	eventJoin
	eventItineraryUpdated
	eventReply
	eventFlush
)

// hubEvent is one unit of work for the hub goroutine. All events from one
// connection travel through the same queue, so they are applied in the
// order that connection produced them.
type hubEvent struct {
	kind   eventKind
	client *Client

	roomID string
	userID string

	itineraryID string
	update      json.RawMessage

	frame Frame
	done  chan struct{}
}

// Hub owns the connection registry and performs every broadcast.
//
// A single goroutine (RunWithContext) applies registrations, joins,
// departures and broadcasts in order. Read pumps never touch the registry
// or another client's send queue; they submit events instead. The only
// work done outside the hub goroutine is frame parsing and the CMS write.
type Hub struct {
	registry  *Registry
	persister gateway.Persister
	cfg       HubConfig
	events    chan hubEvent
	running   atomic.Bool

	// now is the broadcast clock; tests replace it.
	now func() time.Time
}

// NewHub creates a hub that persists itinerary updates through persister.
func NewHub(persister gateway.Persister, cfg HubConfig) *Hub {
	defaults := DefaultHubConfig()
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaults.ServiceName
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaults.PongWait
	}
	if cfg.RateLimit > 0 && cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = defaults.RateLimitBurst
	}

	return &Hub{
		registry:  NewRegistry(),
		persister: persister,
		cfg:       cfg,
		events:    make(chan hubEvent, eventQueueSize),
		now:       time.Now,
	}
}

// Registry exposes read access to the live connection set.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// IsRunning reports whether the event loop is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	return h.registry.Count()
}

// ActiveRooms returns the rooms that currently have joined members.
func (h *Hub) ActiveRooms() []RoomInfo {
	return h.registry.ActiveRooms()
}

// Register queues a new connection for admission. The greeting frame is
// the first frame the connection receives.
func (h *Hub) Register(c *Client) {
	h.submit(c.ctx, hubEvent{kind: eventRegister, client: c})
}

// Unregister queues removal of a connection. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.submit(c.ctx, hubEvent{kind: eventUnregister, client: c})
}

// submit hands an event to the hub goroutine. It gives up when ctx ends,
// which happens once the hub has closed the connection.
func (h *Hub) submit(ctx context.Context, ev hubEvent) bool {
	select {
	case h.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// flush blocks until every event submitted before it has been applied.
func (h *Hub) flush(ctx context.Context) bool {
	done := make(chan struct{})
	if !h.submit(ctx, hubEvent{kind: eventFlush, done: done}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// RunWithContext runs the hub event loop until ctx is canceled.
// This method is designed for use with suture supervision.
//
// When the context is canceled:
//  1. All connected clients are closed
//  2. The method returns ctx.Err()
//
// DETERMINISM: cancellation is checked before every event so no new work
// starts once shutdown has begun.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		// Priority 1: Check for shutdown (non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Wait for the next event or shutdown
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case ev := <-h.events:
			h.handleEvent(ev)
		}
	}
}

func (h *Hub) handleEvent(ev hubEvent) {
	switch ev.kind {
	case eventRegister:
		h.admit(ev.client)
	case eventUnregister:
		h.remove(ev.client, "closed")
	case eventJoin:
		h.join(ev.client, ev.roomID, ev.userID)
	case eventItineraryUpdated:
		h.broadcastItineraryUpdated(ev.client, ev.itineraryID, ev.update)
	case eventReply:
		if _, ok := h.registry.Lookup(ev.client); ok {
			h.deliver(ev.client, ev.frame)
		}
	case eventFlush:
		close(ev.done)
	}
}

// admit registers a connection and greets it.
func (h *Hub) admit(c *Client) {
	if !c.IsOpen() {
		return
	}
	h.registry.Register(c)
	h.publishGauges()

	logging.Info().
		Uint64("connection_id", c.id).
		Str("correlation_id", c.correlationID).
		Int("total_clients", h.registry.Count()).
		Msg("websocket client connected")

	frame, err := connectionFrame(h.cfg.ServiceName)
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode connection frame")
		return
	}
	h.deliver(c, frame)
}

// join tags the sender and tells the rest of its room.
func (h *Hub) join(c *Client, roomID, userID string) {
	if !h.registry.Tag(c, roomID, userID) {
		// Closed while the join was queued
		return
	}
	h.publishGauges()

	logging.Info().
		Uint64("connection_id", c.id).
		Str("room_id", roomID).
		Str("user_id", userID).
		Msg("user joined room")

	frame, err := presenceFrame(MessageTypeUserJoined, roomID, userID, h.now())
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode user-joined frame")
		return
	}
	h.broadcast(And(InRoom(roomID), Not(c)), frame)
}

// broadcastItineraryUpdated fans a persisted edit out to every open
// connection. The scope is global, not the sender's room: itinerary and
// room are independent on the wire.
func (h *Hub) broadcastItineraryUpdated(sender *Client, itineraryID string, update json.RawMessage) {
	frame, err := itineraryUpdatedFrame(itineraryID, update, h.now())
	if err != nil {
		logging.Error().Err(err).Str("itinerary_id", itineraryID).Msg("failed to encode itinerary-updated frame")
		return
	}

	var senderID uint64
	if sender != nil {
		senderID = sender.id
	}
	logging.Debug().
		Uint64("connection_id", senderID).
		Str("itinerary_id", itineraryID).
		Int("clients", h.registry.Count()).
		Msg("broadcast itinerary-updated")

	h.broadcast(All, frame)
}

// remove unregisters a connection, closes its send queue and announces the
// departure to its room. Removal happens before the announcement so the
// departing connection is never a recipient.
func (h *Hub) remove(c *Client, reason string) {
	id, ok := h.registry.Unregister(c)
	if !ok {
		return
	}
	c.closeSend()
	h.publishGauges()

	logging.Info().
		Uint64("connection_id", c.id).
		Str("correlation_id", c.correlationID).
		Str("reason", reason).
		Int("total_clients", h.registry.Count()).
		Msg("websocket client disconnected")

	if !id.Joined {
		return
	}

	frame, err := presenceFrame(MessageTypeUserLeft, id.RoomID, id.UserID, h.now())
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode user-left frame")
		return
	}
	h.broadcast(InRoom(id.RoomID), frame)
}

// broadcast delivers frame to every open connection matching pred.
func (h *Hub) broadcast(pred Predicate, frame Frame) {
	h.registry.ForEachOpen(pred, func(c *Client) {
		h.deliver(c, frame)
	})
}

// deliver queues a frame for one connection. A connection whose queue is
// full is evicted exactly as if its transport had closed.
func (h *Hub) deliver(c *Client, frame Frame) {
	if c.enqueue(frame) {
		metrics.RecordWSSent(frame.Type)
		return
	}
	if !c.IsOpen() {
		return
	}

	metrics.RecordWSEviction()
	logging.Warn().
		Uint64("connection_id", c.id).
		Int("queue_size", cap(c.send)).
		Msg("send queue full, evicting slow websocket client")
	h.remove(c, "slow_consumer")
}

func (h *Hub) publishGauges() {
	metrics.SetWSConnections(h.registry.Count(), len(h.registry.ActiveRooms()))
}

// logGracefulShutdown closes every client and logs the shutdown.
//
// ctx.Err() is NOT logged as an error because cancellation is the expected
// shutdown path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.registry.Count()

	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients closes every registered client in ID order. No user-left
// frames are sent: every recipient is being closed too.
func (h *Hub) closeAllClients() {
	for _, e := range h.registry.snapshot() {
		h.registry.Unregister(e.client)
		e.client.closeSend()
	}
	h.publishGauges()
	logging.Info().Msg("closed all websocket clients during shutdown")
}
