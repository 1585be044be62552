// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

/*
Package api provides the HTTP layer of the relay.

The relay speaks its collaboration protocol over a single WebSocket
endpoint. Everything else here exists to operate it: health probes, a
derived view of active rooms, and Prometheus metrics.

Routes:

	GET /ws                   WebSocket upgrade, handed to the websocket hub
	GET /api/v1/health/live   liveness; 200 while the process runs
	GET /api/v1/health/ready  readiness; hub running, CMS reachable, circuit not open
	GET /api/v1/rooms         active rooms with member counts
	GET /metrics              Prometheus exposition

Middleware Stack:

Applied to every route, in order:

  - Request ID (internal/middleware) with logging context
  - chi RealIP and Recoverer
  - CORS (go-chi/cors) from security.cors_origins
  - Prometheus request metrics (internal/middleware)

Route groups add IP rate limiting (go-chi/httprate) and API security
headers. /metrics is not rate limited.

Origin Checking:

WebSocket upgrades are checked against security.cors_origins. The "*"
wildcard accepts any origin, including a missing Origin header (non-browser
clients). Without the wildcard, the Origin header is required and must match
an entry exactly.

Response Format:

JSON endpoints share the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}

Usage Example:

	hub := websocket.NewHub(persister, hubCfg)
	handler := api.NewHandler(hub, persister, cfg)
	router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(cfg.Security))
	srv := &http.Server{Addr: cfg.Addr(), Handler: router.SetupChi()}

See Also:

  - internal/websocket: hub, registry and wire protocol
  - internal/gateway: CMS client probed by the readiness check
  - internal/middleware: request ID and metrics middleware
*/
package api
