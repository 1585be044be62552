// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tripsync/internal/config"
	"github.com/tomtom215/tripsync/internal/gateway"
	"github.com/tomtom215/tripsync/internal/logging"
	ws "github.com/tomtom215/tripsync/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// testConfig returns a valid configuration for handler tests.
func testConfig(origins ...string) *config.Config {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &config.Config{
		Server: config.ServerConfig{
			Host:        "127.0.0.1",
			Port:        3001,
			ServiceName: "TripSync",
			Environment: "test",
		},
		WebSocket: config.WebSocketConfig{
			HandshakeTimeout: 5 * time.Second,
		},
		Security: config.SecurityConfig{
			CORSOrigins:     origins,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
	}
}

// stubPinger is a CMS probe with a fixed outcome.
type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error { return p.err }

// breakerPinger also reports a circuit breaker state.
type breakerPinger struct {
	stubPinger
	state string
}

func (p breakerPinger) StateString() string { return p.state }

// runningHub starts a hub and stops it when the test ends.
func runningHub(t *testing.T, persister gateway.Persister) *ws.Hub {
	t.Helper()
	hub := ws.NewHub(persister, ws.HubConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for !hub.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("hub did not start")
		}
		time.Sleep(time.Millisecond)
	}
	return hub
}

// noopPersister accepts every update.
type noopPersister struct{}

func (noopPersister) Persist(context.Context, string, json.RawMessage) error { return nil }

// decodeResponse unmarshals the standard envelope.
func decodeResponse(t *testing.T, body io.Reader) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// dataMap returns the envelope's data as a generic object.
func dataMap(t *testing.T, resp APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data is %T, want object", resp.Data)
	}
	return m
}

// cmsRequest is one request seen by the fake CMS.
type cmsRequest struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	Body          string
}

// fakeCMS is an httptest Strapi stand-in. Itinerary IDs starting with
// "fail" are rejected with 500.
type fakeCMS struct {
	*httptest.Server
	mu       sync.Mutex
	requests []cmsRequest
	healthy  bool
}

func newFakeCMS(t *testing.T) *fakeCMS {
	t.Helper()
	f := &fakeCMS{healthy: true}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeCMS) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	healthy := f.healthy
	if r.URL.Path != "/_health" {
		f.requests = append(f.requests, cmsRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          string(body),
		})
	}
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/_health":
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/itineraries/fail"):
		w.WriteHeader(http.StatusInternalServerError)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/itineraries/"):
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":1}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeCMS) Requests() []cmsRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cmsRequest(nil), f.requests...)
}

func (f *fakeCMS) setHealthy(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = v
}

var errProbe = errors.New("dial tcp 10.0.0.9:1337: connect: connection refused")
