// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

/*
Package services adapts the relay's long-running components to suture.Service.

  - WebSocketHubService wraps the hub's RunWithContext event loop.
  - HTTPServerService wraps an *http.Server with graceful shutdown.

Both depend on small interfaces (ContextHub, HTTPServer) rather than the
concrete types, so they can be tested with fakes and the package imports
nothing else from the relay.
*/
package services
