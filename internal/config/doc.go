// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

/*
Package config loads and validates relay configuration.

Configuration is layered with Koanf v2 (highest priority wins):

 1. Environment variables (explicit mapping table, unknown vars ignored)
 2. YAML config file (CONFIG_PATH, ./config.yaml, ./config.yml, /etc/tripsync/config.yaml)
 3. Built-in defaults

Environment Variables:

	STRAPI_URL              CMS base URL (required), e.g. http://localhost:1337
	STRAPI_API_TOKEN        Bearer token sent with every CMS write
	STRAPI_TIMEOUT          Per-request CMS timeout (default 30s)
	CMS_CIRCUIT_BREAKER     Wrap the CMS client in a circuit breaker (default false)
	PORT / HTTP_PORT        Listening port (default 3001)
	HTTP_HOST               Listening address (default 0.0.0.0)
	SERVICE_NAME            Name used in the connection greeting
	WS_SEND_BUFFER          Per-connection outbound queue length (default 256)
	WS_MAX_MESSAGE_SIZE     Max inbound frame size in bytes (default 512KB)
	WS_RATE_LIMIT           Inbound frames per second per connection (0 = unlimited)
	CORS_ORIGINS            Comma-separated allowed origins (default *)
	LOG_LEVEL / LOG_FORMAT  Logging level and format (json, console)

Example config.yaml:

	server:
	  port: 3001
	  service_name: TripSync
	cms:
	  url: http://strapi:1337
	  api_token: ${STRAPI_API_TOKEN}
	websocket:
	  send_buffer: 256
	logging:
	  level: info
	  format: json
*/
package config
