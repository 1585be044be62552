// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package websocket

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tripsync/internal/gateway"
	"github.com/tomtom215/tripsync/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// fixedNow is the broadcast clock used by hub tests.
var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 5_000_000, time.UTC)

const fixedTimestamp = "2026-03-01T12:00:00.005Z"

type persistCall struct {
	itineraryID string
	update      string
}

// fakePersister records calls and returns a configurable outcome.
type fakePersister struct {
	mu        sync.Mutex
	calls     []persistCall
	err       error
	panicWith interface{}
}

func (f *fakePersister) Persist(_ context.Context, itineraryID string, update json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	f.calls = append(f.calls, persistCall{itineraryID: itineraryID, update: string(update)})
	return f.err
}

func (f *fakePersister) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakePersister) Calls() []persistCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]persistCall(nil), f.calls...)
}

// cmsDown mimics what the gateway returns when the CMS is unreachable.
func cmsDown() error {
	return &gateway.PersistenceError{
		ItineraryID: "it-42",
		Err:         errors.New(`Put "http://cms:1337/api/itineraries/it-42": dial tcp: connection refused`),
	}
}

// testHub is a running hub plus the means to drive it synchronously.
type testHub struct {
	*Hub
	persister *fakePersister
	ctx       context.Context
	cancel    context.CancelFunc
	errCh     chan error
	stopped   chan struct{}
}

func startHub(t *testing.T, cfg HubConfig) *testHub {
	t.Helper()
	p := &fakePersister{}
	h := NewHub(p, cfg)
	h.now = func() time.Time { return fixedNow }

	ctx, cancel := context.WithCancel(context.Background())
	th := &testHub{
		Hub:       h,
		persister: p,
		ctx:       ctx,
		cancel:    cancel,
		errCh:     make(chan error, 1),
		stopped:   make(chan struct{}),
	}
	go func() {
		defer close(th.stopped)
		th.errCh <- h.RunWithContext(ctx)
	}()
	// Wait for shutdown so one test's gauges never leak into the next
	t.Cleanup(func() {
		cancel()
		<-th.stopped
	})
	return th
}

// settle waits until the hub has applied everything submitted so far.
func (th *testHub) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !th.flush(ctx) {
		t.Fatal("hub did not drain its event queue in time")
	}
}

// connect registers a transport-less client and discards its greeting.
func (th *testHub) connect(t *testing.T) *Client {
	t.Helper()
	c := NewClient(th.Hub, nil)
	th.Register(c)
	th.settle(t)
	frames := drain(c)
	if len(frames) != 1 || frames[0]["type"] != MessageTypeConnection {
		t.Fatalf("expected exactly one connection frame, got %v", frames)
	}
	return c
}

// send routes a raw frame as the client's read pump would and waits for
// the resulting hub work.
func (th *testHub) send(t *testing.T, c *Client, raw string) {
	t.Helper()
	th.handleFrame(c, []byte(raw))
	th.settle(t)
}

func (th *testHub) join(t *testing.T, c *Client, roomID, userID string) {
	t.Helper()
	th.send(t, c, `{"type":"join-room","roomId":"`+roomID+`","userId":"`+userID+`"}`)
}

// drain returns every frame currently queued for c, decoded.
func drain(c *Client) []map[string]interface{} {
	var out []map[string]interface{}
	for {
		select {
		case f, ok := <-c.send:
			if !ok {
				return out
			}
			var m map[string]interface{}
			if err := json.Unmarshal(f.Data, &m); err != nil {
				m = map[string]interface{}{"_raw": string(f.Data)}
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

// expectNone fails if any of the clients has queued frames.
func expectNone(t *testing.T, clients ...*Client) {
	t.Helper()
	for _, c := range clients {
		if frames := drain(c); len(frames) != 0 {
			t.Errorf("client %d: expected no frames, got %v", c.ID(), frames)
		}
	}
}

// expectOne fails unless c has exactly one queued frame of msgType.
func expectOne(t *testing.T, c *Client, msgType string) map[string]interface{} {
	t.Helper()
	frames := drain(c)
	if len(frames) != 1 {
		t.Fatalf("client %d: expected 1 %s frame, got %d: %v", c.ID(), msgType, len(frames), frames)
	}
	if frames[0]["type"] != msgType {
		t.Fatalf("client %d: expected %s frame, got %v", c.ID(), msgType, frames[0])
	}
	return frames[0]
}

func checkField(t *testing.T, frame map[string]interface{}, key string, want interface{}) {
	t.Helper()
	if got := frame[key]; got != want {
		t.Errorf("frame[%q] = %v, want %v (frame %v)", key, got, want, frame)
	}
}
