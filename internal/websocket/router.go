// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package websocket

import (
	"fmt"

	"github.com/tomtom215/tripsync/internal/logging"
	"github.com/tomtom215/tripsync/internal/metrics"
)

// handleFrame routes one inbound frame. It runs on the sender's read pump,
// so frames from one connection are handled strictly in arrival order.
// Nothing that happens here closes the connection.
func (h *Hub) handleFrame(c *Client, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordWSError("panic")
			logging.Ctx(c.ctx).Error().
				Interface("panic", r).
				Msg("recovered from panic while handling websocket frame")
			h.reply(c, ErrMsgProcessFailed, fmt.Sprint(r))
		}
	}()

	if c.limiter != nil && !c.limiter.Allow() {
		metrics.RecordWSError("rate_limit")
		h.reply(c, ErrMsgProcessFailed, "rate limit exceeded")
		return
	}

	msg, err := ParseInbound(data)
	if err != nil {
		metrics.RecordWSReceived("invalid")
		metrics.RecordWSError("parse")
		logging.Ctx(c.ctx).Debug().Err(err).Msg("rejected websocket frame")
		h.reply(c, ErrMsgProcessFailed, err.Error())
		return
	}
	metrics.RecordWSReceived(msg.MessageType())

	switch m := msg.(type) {
	case *ItineraryUpdate:
		h.handleItineraryUpdate(c, m)
	case *JoinRoom:
		h.handleJoinRoom(c, m)
	}
}

// handleItineraryUpdate persists the edit and, only on success, asks the
// hub to broadcast it. The CMS call is the one place a frame can wait.
func (h *Hub) handleItineraryUpdate(c *Client, m *ItineraryUpdate) {
	if err := h.persister.Persist(c.ctx, m.ItineraryID, m.Update); err != nil {
		metrics.RecordWSError("persist")
		h.reply(c, ErrMsgUpdateFailed, err.Error())
		return
	}

	h.submit(c.ctx, hubEvent{
		kind:        eventItineraryUpdated,
		client:      c,
		itineraryID: m.ItineraryID,
		update:      m.Update,
	})
}

func (h *Hub) handleJoinRoom(c *Client, m *JoinRoom) {
	h.submit(c.ctx, hubEvent{
		kind:   eventJoin,
		client: c,
		roomID: m.RoomID,
		userID: m.UserID,
	})
}

// reply sends an error frame to the sender only.
func (h *Hub) reply(c *Client, message, details string) {
	frame, err := errorFrame(message, details)
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode error frame")
		return
	}
	h.submit(c.ctx, hubEvent{kind: eventReply, client: c, frame: frame})
}
