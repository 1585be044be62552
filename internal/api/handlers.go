// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/tripsync/internal/config"
	"github.com/tomtom215/tripsync/internal/gateway"
	"github.com/tomtom215/tripsync/internal/logging"
	ws "github.com/tomtom215/tripsync/internal/websocket"
)

// breakerStater is implemented by gateway.CircuitBreakerClient.
type breakerStater interface {
	StateString() string
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, WebSocket upgrade (this file)
//   - handlers_health.go: liveness, readiness and room listing
type Handler struct {
	hub       *ws.Hub
	cms       gateway.Pinger
	config    *config.Config
	startTime time.Time
}

// NewHandler creates a new API handler.
//
// Dependencies:
//   - hub: WebSocket hub that owns every relay connection
//   - cms: CMS client probed by the readiness check; when it also reports a
//     circuit breaker state, an open circuit marks the relay not ready
//   - cfg: application configuration (origins, handshake timeout)
//
// Example:
//
//	handler := api.NewHandler(hub, persister, cfg)
//	router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(cfg.Security))
//	http.ListenAndServe(cfg.Addr(), router.SetupChi())
func NewHandler(hub *ws.Hub, cms gateway.Pinger, cfg *config.Config) *Handler {
	return &Handler{
		hub:       hub,
		cms:       cms,
		config:    cfg,
		startTime: time.Now(),
	}
}

// circuitState returns the CMS circuit breaker state, or "disabled".
func (h *Handler) circuitState() string {
	if b, ok := h.cms.(breakerStater); ok {
		return b.StateString()
	}
	return "disabled"
}

// WebSocket upgrades the request and hands the connection to the hub.
// The greeting frame is sent by the hub once the connection is admitted.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil || !h.hub.IsRunning() {
		logging.Warn().Msg("WebSocket connection rejected: hub not running")
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error response
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	ws.NewClient(h.hub, conn).Serve()
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handler) getUpgrader() websocket.Upgrader {
	handshakeTimeout := 10 * time.Second
	if h.config != nil && h.config.WebSocket.HandshakeTimeout > 0 {
		handshakeTimeout = h.config.WebSocket.HandshakeTimeout
	}
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: handshakeTimeout,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins against
// security.cors_origins.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	// If config is nil, allow by default (tests/development)
	if h.config == nil {
		return true
	}

	// The wildcard admits everything, including non-browser clients that
	// send no Origin at all
	if h.config.AllowsAnyOrigin() {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	for _, allowedOrigin := range h.config.Security.CORSOrigins {
		if strings.EqualFold(allowedOrigin, origin) {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue escapes control characters so client-supplied values
// cannot forge log lines.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
