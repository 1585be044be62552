// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

/*
Package gateway persists itinerary edits to the Strapi headless CMS.

A single write is one HTTP request:

	PUT {STRAPI_URL}/api/itineraries/{itineraryId}
	Authorization: Bearer {STRAPI_API_TOKEN}
	Content-Type: application/json

	{"data": <update>}

The update payload is opaque to the relay and forwarded byte for byte. A nil
update, from a frame without an "update" key, is sent as {"data": null}. Any
2xx response is success. Every failure, whether a transport error, a
non-2xx status or a rejection by the circuit breaker, is returned as a
*PersistenceError whose Error() text is the underlying reason. The relay
sends that text to the editing client in the "details" field of its error
frame.

The circuit breaker is off by default. Once it trips, Persist fails with
"circuit breaker is open" and makes no request until CircuitBreaker.Timeout
(30s by default) has passed; gobreaker uses 60s if that is zero.

There is no retry, backoff or idempotency key. Concurrent writes to the same
itinerary are not ordered; the CMS keeps whichever arrives last.

Usage:

	client := gateway.NewClient(cfg.CMS.URL, cfg.CMS.APIToken, cfg.CMS.Timeout)
	var persister gateway.Persister = client
	if cfg.CMS.CircuitBreaker.Enabled {
		persister = gateway.NewCircuitBreakerClient(client, cfg.CMS.CircuitBreaker)
	}
	err := persister.Persist(ctx, "42", json.RawMessage(`{"title":"Lisbon"}`))
*/
package gateway
