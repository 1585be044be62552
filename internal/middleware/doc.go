// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

/*
Package middleware provides HTTP middleware for the relay's HTTP surface.

Key Components:

  - Request ID: UUID-based request tracking, propagated into the logging context
  - Prometheus Metrics: HTTP request/response instrumentation

Both are written as func(http.HandlerFunc) http.HandlerFunc and adapted to
chi's r.Use() by the api package.

Usage Example - Request ID:

	http.HandleFunc("/api/v1/rooms",
	    middleware.RequestID(handler),
	)

	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := middleware.GetRequestID(r.Context())
	    logging.Ctx(r.Context()).Info().Msg("listing rooms")
	}

An upstream X-Request-ID is reused when it is at most 128 printable ASCII
characters; otherwise a new UUID is generated.

Prometheus Metrics:

The endpoint label is the chi route pattern (for example /api/v1/rooms),
not the raw path. The response writer is wrapped with chi's
WrapResponseWriter so http.Hijacker keeps working for WebSocket upgrades;
a hijacked upgrade is recorded with status 101.

Thread Safety:

All middleware components are safe for concurrent use.

See Also:

  - internal/api: chi router that installs this middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
