// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

/*
Package websocket implements the collaboration relay: the connection
registry, the message router and the wire protocol.

Key Components:

  - Registry: the live connection set with each connection's room/user tag
  - Hub: single event loop that owns the registry and performs all broadcasts
  - Client: one WebSocket connection with a read pump and a write pump
  - ParseInbound: turns a raw frame into *ItineraryUpdate or *JoinRoom

Architecture:

	 read pump (per client)            hub goroutine
	┌──────────────────────┐        ┌──────────────────┐
	│ ParseInbound         │ events │ Registry         │
	│ Persist (CMS write)  │ ─────► │ tag / unregister │
	└──────────────────────┘        │ broadcast        │
	                                └────────┬─────────┘
	                                         │ bounded send queues
	                              ┌──────────┼──────────┐
	                           Client1    Client2    Client3

Rooms are not stored. A room is the set of connections whose tag carries
the same roomId; Registry.ActiveRooms derives the list on demand.

Wire Protocol:

Inbound:

	{"type":"itinerary-update","itineraryId":"it-42","update":{...}}
	{"type":"join-room","roomId":"trip-1","userId":"u1"}

Keys are matched case-insensitively. roomId, userId and itineraryId must be
present but may be empty. A missing update is forwarded as null.

Outbound:

	{"type":"connection","message":"Connected to TripSync collaboration service"}
	{"type":"itinerary-updated","itineraryId":"it-42","update":{...},"timestamp":"2026-03-01T12:00:00.000Z"}
	{"type":"user-joined","roomId":"trip-1","userId":"u2","timestamp":"..."}
	{"type":"user-left","roomId":"trip-1","userId":"u1","timestamp":"..."}
	{"type":"error","message":"Failed to process message","details":"..."}

Delivery Rules:

  - connection: sent once, first, to the new connection only
  - itinerary-updated: every open connection, regardless of room, after the CMS accepted the write
  - user-joined: open connections in the same room, excluding the sender
  - user-left: open connections in the same room, after the departing connection is removed
  - error: the sender only; the connection stays open

itinerary-updated is deliberately not room-scoped while presence is. Clients
filter by itineraryId.

Ordering:

Frames from one connection are handled in arrival order. The CMS write runs
on the sender's read pump, so a slow CMS delays only that sender. There is
no ordering between connections and no conflict detection: the last write
the CMS receives wins.

Slow Consumers:

Each client has a bounded send queue (WS_SEND_BUFFER, default 256). A
broadcast that finds the queue full evicts the client; eviction is handled
like a transport close, including the user-left notice.

Thread Safety:

Only the hub goroutine mutates the registry or writes to send queues.
Registry reads (Count, ActiveRooms) are safe from any goroutine.
*/
package websocket
