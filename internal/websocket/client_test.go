// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// serveHub exposes the hub over a real websocket endpoint.
func serveHub(t *testing.T, th *testHub) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(th.Hub, conn).Serve()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

func writeFrame(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestClient_EndToEnd(t *testing.T) {
	th := startHub(t, HubConfig{})
	url := serveHub(t, th)

	alice := dial(t, url)
	checkField(t, readFrame(t, alice), "type", MessageTypeConnection)
	bob := dial(t, url)
	checkField(t, readFrame(t, bob), "type", MessageTypeConnection)

	writeFrame(t, alice, `{"type":"join-room","roomId":"trip-1","userId":"alice"}`)
	waitFor(t, "alice to join", func() bool {
		rooms := th.ActiveRooms()
		return len(rooms) == 1 && rooms[0].Members == 1
	})

	writeFrame(t, bob, `{"type":"join-room","roomId":"trip-1","userId":"bob"}`)
	joined := readFrame(t, alice)
	checkField(t, joined, "type", MessageTypeUserJoined)
	checkField(t, joined, "userId", "bob")

	writeFrame(t, bob, `{"type":"itinerary-update","itineraryId":"it-9","update":{"note":"ferry at 9"}}`)
	for _, conn := range []*websocket.Conn{alice, bob} {
		f := readFrame(t, conn)
		checkField(t, f, "type", MessageTypeItineraryUpdated)
		checkField(t, f, "itineraryId", "it-9")
		checkField(t, f, "timestamp", fixedTimestamp)
	}

	writeFrame(t, bob, `{"type":"nope"}`)
	checkField(t, readFrame(t, bob), "type", MessageTypeError)

	// Bob's tab closes; Alice hears about it
	_ = bob.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = bob.Close()

	left := readFrame(t, alice)
	checkField(t, left, "type", MessageTypeUserLeft)
	checkField(t, left, "userId", "bob")
	waitFor(t, "bob to be unregistered", func() bool { return th.GetClientCount() == 1 })
}

func TestClient_OversizedFrameClosesConnection(t *testing.T) {
	th := startHub(t, HubConfig{MaxMessageSize: 64})
	url := serveHub(t, th)

	conn := dial(t, url)
	readFrame(t, conn)

	writeFrame(t, conn, `{"type":"join-room","roomId":"`+strings.Repeat("x", 128)+`","userId":"u"}`)

	waitFor(t, "oversized client to be dropped", func() bool { return th.GetClientCount() == 0 })
}

func TestClient_HubShutdownSendsClose(t *testing.T) {
	th := startHub(t, HubConfig{})
	url := serveHub(t, th)

	conn := dial(t, url)
	readFrame(t, conn)
	waitFor(t, "registration", func() bool { return th.GetClientCount() == 1 })

	th.cancel()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("ReadMessage() error = %v, want normal close", err)
	}
}
