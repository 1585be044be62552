// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package services

import (
	"context"
	"errors"
	"fmt"
)

// ContextHub is the slice of *websocket.Hub the supervisor needs.
// Declared here so this package does not import internal/websocket.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// WebSocketHubService runs the relay hub under suture.
//
// On cancellation the hub closes every connection and returns ctx.Err(),
// which suture treats as a clean stop. Any other return is a crash and
// the messaging layer restarts the hub with a fresh event loop.
type WebSocketHubService struct {
	hub  ContextHub
	name string
}

// NewWebSocketHubService wraps hub as a supervised service.
func NewWebSocketHubService(hub ContextHub) *WebSocketHubService {
	return &WebSocketHubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	err := w.hub.RunWithContext(ctx)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w", w.name, err)
}

// String implements fmt.Stringer; suture uses it in event logs.
func (w *WebSocketHubService) String() string {
	return w.name
}
