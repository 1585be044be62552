// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/tripsync/internal/gateway"
)

// isolateEnv clears the variables that would override the test config file.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_PATH", "PORT", "HTTP_PORT", "HTTP_HOST", "HTTP_SHUTDOWN_TIMEOUT", "SERVICE_NAME",
		"STRAPI_URL", "STRAPI_API_TOKEN", "CMS_CIRCUIT_BREAKER", "CORS_ORIGINS", "DISABLE_RATE_LIMIT",
		"WS_SEND_BUFFER", "WS_MAX_MESSAGE_SIZE", "WS_RATE_LIMIT", "WS_RATE_LIMIT_BURST",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestCheckConfig(t *testing.T) {
	isolateEnv(t)

	t.Run("valid file prints summary", func(t *testing.T) {
		path := writeConfig(t, `
server:
  port: 4100
  service_name: Wanderlust
cms:
  url: http://cms.internal:1337
  api_token: secret
`)
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out

		if err := app.Run([]string{appName, "--config", path, "check-config"}); err != nil {
			t.Fatalf("check-config: %v", err)
		}

		got := out.String()
		for _, want := range []string{"configuration OK", ":4100", "Wanderlust", "http://cms.internal:1337", "token set"} {
			if !strings.Contains(got, want) {
				t.Errorf("summary missing %q:\n%s", want, got)
			}
		}
		if strings.Contains(got, "secret") {
			t.Error("summary must not print the API token")
		}
	})

	t.Run("invalid file fails", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: 70000\n")
		app := newApp()
		app.Writer = &bytes.Buffer{}

		if err := app.Run([]string{appName, "--config", path, "check-config"}); err == nil {
			t.Fatal("expected validation error for out-of-range port")
		}
	})

	t.Run("missing file fails", func(t *testing.T) {
		app := newApp()
		app.Writer = &bytes.Buffer{}

		err := app.Run([]string{appName, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "check-config"})
		if err == nil {
			t.Fatal("expected error for missing config file")
		}
	})

	t.Run("log level flag overrides", func(t *testing.T) {
		path := writeConfig(t, "logging:\n  level: info\n")
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out

		if err := app.Run([]string{appName, "--config", path, "--log-level", "debug", "check-config"}); err != nil {
			t.Fatalf("check-config: %v", err)
		}
		if !strings.Contains(out.String(), "log level:       debug") {
			t.Errorf("expected debug level in summary:\n%s", out.String())
		}
	})

	t.Run("bad log level flag fails", func(t *testing.T) {
		path := writeConfig(t, "logging:\n  level: info\n")
		app := newApp()
		app.Writer = &bytes.Buffer{}

		if err := app.Run([]string{appName, "--config", path, "--log-level", "loud", "check-config"}); err == nil {
			t.Fatal("expected error for unknown log level")
		}
	})
}

func TestNewGateway(t *testing.T) {
	isolateEnv(t)

	t.Run("breaker off by default", func(t *testing.T) {
		cfg, err := (&cliOptions{ConfigPath: writeConfig(t, "cms:\n  url: http://cms.internal:1337\n")}).load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if _, ok := newGateway(cfg).(*gateway.Client); !ok {
			t.Errorf("expected *gateway.Client, got %T", newGateway(cfg))
		}
	})

	t.Run("breaker enabled", func(t *testing.T) {
		cfg, err := (&cliOptions{ConfigPath: writeConfig(t, "cms:\n  circuit_breaker:\n    enabled: true\n")}).load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if _, ok := newGateway(cfg).(*gateway.CircuitBreakerClient); !ok {
			t.Errorf("expected *gateway.CircuitBreakerClient, got %T", newGateway(cfg))
		}
	})

	t.Run("breaker disabled", func(t *testing.T) {
		cfg, err := (&cliOptions{ConfigPath: writeConfig(t, "cms:\n  circuit_breaker:\n    enabled: false\n")}).load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if _, ok := newGateway(cfg).(*gateway.Client); !ok {
			t.Errorf("expected *gateway.Client, got %T", newGateway(cfg))
		}
	})
}

func TestHubConfigFromConfig(t *testing.T) {
	isolateEnv(t)

	cfg, err := (&cliOptions{ConfigPath: writeConfig(t, `
server:
  service_name: Wanderlust
websocket:
  send_buffer: 32
  max_message_size: 4096
  write_wait: 2s
  pong_wait: 20s
  rate_limit_per_second: 5
  rate_limit_burst: 7
`)}).load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	hc := hubConfig(cfg)
	if hc.ServiceName != "Wanderlust" || hc.SendBuffer != 32 || hc.MaxMessageSize != 4096 {
		t.Errorf("unexpected hub config: %+v", hc)
	}
	if hc.WriteWait != 2*time.Second || hc.PongWait != 20*time.Second {
		t.Errorf("unexpected hub timeouts: %+v", hc)
	}
	if hc.RateLimit != 5 || hc.RateLimitBurst != 7 {
		t.Errorf("unexpected hub rate limit: %+v", hc)
	}
}

func TestRunServer(t *testing.T) {
	isolateEnv(t)

	cms := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer cms.Close()

	port := freePort(t)
	cfg, err := (&cliOptions{ConfigPath: writeConfig(t, fmt.Sprintf(`
server:
  host: 127.0.0.1
  port: %d
  shutdown_timeout: 2s
cms:
  url: %s
logging:
  level: error
`, port, cms.URL))}).load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, cfg) }()

	// Ready implies both the listener and the hub are running.
	ready := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health/ready", port)
	status := 0
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && status != http.StatusOK {
		resp, err := http.Get(ready)
		if err == nil {
			status = resp.StatusCode
			resp.Body.Close()
		}
		if status != http.StatusOK {
			time.Sleep(20 * time.Millisecond)
		}
	}
	if status != http.StatusOK {
		cancel()
		t.Fatalf("relay never became ready (last status %d)", status)
	}

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://127.0.0.1:%d/ws", port), nil)
	if err != nil {
		cancel()
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, greeting, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if !strings.Contains(string(greeting), `"type":"connection"`) {
		t.Errorf("unexpected first frame: %s", greeting)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runServer returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not stop after cancel")
	}
}
