// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

/*
Package supervisor runs the relay's long-lived services under a suture v4
supervisor tree.

# Layout

	RootSupervisor ("tripsync")
	├── MessagingSupervisor ("messaging-layer")
	│   └── WebSocketHubService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

The hub and the HTTP listener restart independently. If the hub goroutine
crashes, suture restarts it and the listener keeps answering health checks
(readiness reports the hub as down until it is back).

Supervisor events (service start, failure, backoff) are logged through
sutureslog. Pass logging.NewSlogLogger() so they land in the same zerolog
stream as the rest of the relay.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	return tree.Serve(ctx) // blocks until ctx is canceled

After Serve returns, UnstoppedServiceReport lists services that did not stop
within ShutdownTimeout.
*/
package supervisor
