// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

/*
Package metrics defines the relay's Prometheus collectors.

All collectors are registered on the default registry through promauto and
are exposed at GET /metrics.

WebSocket:

	websocket_connections                  gauge
	websocket_active_rooms                 gauge
	websocket_messages_received_total      counter{type}
	websocket_messages_sent_total          counter{type}
	websocket_errors_total                 counter{error_type}
	websocket_evictions_total              counter

CMS and circuit breaker:

	cms_request_duration_seconds           histogram{status}
	cms_request_errors_total               counter
	circuit_breaker_state                  gauge{name}   0=closed 1=half-open 2=open
	circuit_breaker_requests_total         counter{name,result}
	circuit_breaker_consecutive_failures   gauge{name}
	circuit_breaker_state_transitions_total counter{name,from_state,to_state}

HTTP API:

	api_requests_total                     counter{method,endpoint,status_code}
	api_request_duration_seconds           histogram{method,endpoint}
	api_active_requests                    gauge
	api_rate_limit_hits_total              counter{endpoint}

Recording helpers (RecordWSSent, RecordCMSRequest, ...) are safe for
concurrent use.
*/
package metrics
