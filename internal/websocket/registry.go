// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package websocket

import (
	"sort"
	"sync"
)

// Identity is the room/user tag of a connection. RoomID and UserID are
// always set together by Tag; Joined is false until the first join-room.
type Identity struct {
	RoomID string
	UserID string
	Joined bool
}

// Predicate selects connections during ForEachOpen.
type Predicate func(c *Client, id Identity) bool

// All matches every connection.
func All(*Client, Identity) bool { return true }

// InRoom matches joined connections tagged with roomID.
func InRoom(roomID string) Predicate {
	return func(_ *Client, id Identity) bool {
		return id.Joined && id.RoomID == roomID
	}
}

// Not excludes a single connection.
func Not(self *Client) Predicate {
	return func(c *Client, _ Identity) bool {
		return c != self
	}
}

// And matches when every predicate matches.
func And(preds ...Predicate) Predicate {
	return func(c *Client, id Identity) bool {
		for _, p := range preds {
			if !p(c, id) {
				return false
			}
		}
		return true
	}
}

// RoomInfo is a derived view of one room; rooms are never stored.
type RoomInfo struct {
	RoomID  string   `json:"roomId"`
	Members int      `json:"members"`
	UserIDs []string `json:"userIds"`
}

// entry is the registry's record for one live connection.
type entry struct {
	client *Client
	id     Identity
}

// Registry is the authoritative set of open connections and their tags.
//
// Mutations happen only on the hub goroutine. The mutex exists so HTTP
// handlers can read counts and rooms concurrently.
type Registry struct {
	mu      sync.RWMutex
	entries map[uint64]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint64]*entry)}
}

// Register adds a newly accepted connection. Registering an already
// registered connection keeps its existing tag.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[c.id]; ok {
		return
	}
	r.entries[c.id] = &entry{client: c}
}

// Tag sets the room and user of a registered connection, overwriting any
// previous tag. Returns false if the connection is not registered.
func (r *Registry) Tag(c *Client, roomID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[c.id]
	if !ok {
		return false
	}
	e.id = Identity{RoomID: roomID, UserID: userID, Joined: true}
	return true
}

// Unregister removes a connection and returns the tag it had. The boolean
// is false when the connection was already gone, so callers emit at most
// one departure per connection.
func (r *Registry) Unregister(c *Client) (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[c.id]
	if !ok {
		return Identity{}, false
	}
	delete(r.entries, c.id)
	return e.id, true
}

// Lookup returns the current tag of a connection.
func (r *Registry) Lookup(c *Client) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[c.id]
	if !ok {
		return Identity{}, false
	}
	return e.id, true
}

// ForEachOpen applies action to every registered connection that matches
// pred and whose transport is still open, in ascending connection ID order.
//
// The set is snapshotted first; action may unregister connections
// (including ones later in the iteration) without deadlocking. A
// connection closed by an earlier action is skipped.
func (r *Registry) ForEachOpen(pred Predicate, action func(c *Client)) {
	for _, e := range r.snapshot() {
		if !e.client.IsOpen() {
			continue
		}
		if pred != nil && !pred(e.client, e.id) {
			continue
		}
		action(e.client)
	}
}

// snapshot copies the entries sorted by connection ID.
// DETERMINISM: map iteration order is random; broadcasts must not be.
func (r *Registry) snapshot() []entry {
	r.mu.RLock()
	out := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].client.id < out[j].client.id
	})
	return out
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ActiveRooms derives the set of rooms with at least one joined
// connection, sorted by room ID. User IDs are listed in connection order
// and may repeat when one user has several tabs open.
func (r *Registry) ActiveRooms() []RoomInfo {
	byRoom := make(map[string]*RoomInfo)
	var order []string

	for _, e := range r.snapshot() {
		if !e.id.Joined {
			continue
		}
		info, ok := byRoom[e.id.RoomID]
		if !ok {
			info = &RoomInfo{RoomID: e.id.RoomID}
			byRoom[e.id.RoomID] = info
			order = append(order, e.id.RoomID)
		}
		info.Members++
		info.UserIDs = append(info.UserIDs, e.id.UserID)
	}

	sort.Strings(order)
	rooms := make([]RoomInfo, 0, len(order))
	for _, id := range order {
		rooms = append(rooms, *byRoom[id])
	}
	return rooms
}
