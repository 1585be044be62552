// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package api

import (
	"context"
	"net/http"
	"time"

	ws "github.com/tomtom215/tripsync/internal/websocket"
)

// readinessTimeout bounds the CMS probe so a hung CMS cannot hang the probe.
const readinessTimeout = 5 * time.Second

// ReadinessStatus is the body of /api/v1/health/ready.
type ReadinessStatus struct {
	Ready        bool     `json:"ready_to_serve"`
	HubRunning   bool     `json:"hub_running"`
	CMSReachable bool     `json:"cms_reachable"`
	CircuitState string   `json:"circuit_state"`
	Connections  int      `json:"connections"`
	Uptime       float64  `json:"uptime"`
	Reasons      []string `json:"reasons,omitempty"`
}

// RoomsResponse is the body of /api/v1/rooms.
type RoomsResponse struct {
	Rooms            []ws.RoomInfo `json:"rooms"`
	TotalRooms       int           `json:"total_rooms"`
	TotalConnections int           `json:"total_connections"`
}

// HealthLive handles liveness probe requests (Kubernetes-style)
// Returns 200 OK if the process is alive, regardless of dependencies
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style)
// Returns 200 OK only if the relay can accept connections and persist
// updates; 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := ReadinessStatus{
		CircuitState: h.circuitState(),
		Uptime:       time.Since(h.startTime).Seconds(),
	}

	if h.hub != nil {
		status.HubRunning = h.hub.IsRunning()
		status.Connections = h.hub.GetClientCount()
	}
	if !status.HubRunning {
		status.Reasons = append(status.Reasons, ErrHubNotRunning.Error())
	}

	if h.cms == nil {
		status.Reasons = append(status.Reasons, ErrCMSNotConfigured.Error())
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := h.cms.Ping(ctx)
		cancel()
		if err != nil {
			status.Reasons = append(status.Reasons, ErrCMSUnreachable.Error()+": "+err.Error())
		} else {
			status.CMSReachable = true
		}
	}

	if status.CircuitState == "open" {
		status.Reasons = append(status.Reasons, ErrCircuitOpen.Error())
	}

	status.Ready = len(status.Reasons) == 0

	statusCode := http.StatusOK
	if !status.Ready {
		statusCode = http.StatusServiceUnavailable
	}
	NewResponseWriter(w, r).WithStatus(statusCode, status)
}

// Rooms lists the rooms that currently have joined connections. Rooms are
// derived from connection tags on every call; nothing is stored.
func (h *Handler) Rooms(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "WebSocket service unavailable")
		return
	}

	rooms := h.hub.ActiveRooms()
	WriteSuccess(w, r, RoomsResponse{
		Rooms:            rooms,
		TotalRooms:       len(rooms),
		TotalConnections: h.hub.GetClientCount(),
	})
}
