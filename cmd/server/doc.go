// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

/*
Command tripsync-relay runs the TripSync real-time collaboration relay.

Browsers connect to /ws, join a room with a join-room frame and send
itinerary-update frames. Each update is written to the Strapi CMS and then
broadcast to every connected client; presence (user-joined, user-left) is
broadcast within the room.

# Process Layout

	RootSupervisor ("tripsync")
	├── MessagingSupervisor ("messaging-layer")
	│   └── WebSocket hub
	└── APISupervisor ("api-layer")
	    └── HTTP server (/ws, /api/v1/health/*, /api/v1/rooms, /metrics)

# Configuration

Settings are layered: built-in defaults, then an optional YAML file, then
environment variables. The most common variables:

	STRAPI_URL        CMS base URL (default http://localhost:1337)
	STRAPI_API_TOKEN  bearer token sent with every CMS write
	PORT              listen port (default 3001)
	CORS_ORIGINS      comma-separated allowed origins, "*" for any
	LOG_LEVEL         trace, debug, info, warn, error

# Usage

	tripsync-relay                         # run with defaults and env
	tripsync-relay --config relay.yaml     # layer a YAML file
	tripsync-relay --log-level debug
	tripsync-relay check-config            # validate and print the effective settings

SIGINT and SIGTERM stop the supervisor tree: the HTTP server drains, then the
hub closes every WebSocket with a normal close frame.
*/
package main
