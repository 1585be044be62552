// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

// Package api provides HTTP handlers for the relay.
//
// errors.go - Common API error definitions
package api

import "errors"

// Readiness failures, reported in ReadinessStatus.Reasons
var (
	// ErrHubNotRunning indicates the websocket hub event loop is stopped
	ErrHubNotRunning = errors.New("websocket hub is not running")

	// ErrCMSNotConfigured indicates no CMS client was wired in
	ErrCMSNotConfigured = errors.New("cms client is not configured")

	// ErrCMSUnreachable indicates the CMS health probe failed
	ErrCMSUnreachable = errors.New("cms is unreachable")

	// ErrCircuitOpen indicates the CMS circuit breaker is rejecting writes
	ErrCircuitOpen = errors.New("cms circuit breaker is open")
)
