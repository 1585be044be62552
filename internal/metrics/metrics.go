// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the relay:
// - WebSocket connections and frames
// - CMS (Strapi) write latency
// - Circuit breaker state
// - HTTP API latency and throughput

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket frames queued for delivery",
		},
		[]string{"type"}, // connection, itinerary-updated, user-joined, user-left, error
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket frames received",
		},
		[]string{"type"}, // itinerary-update, join-room, invalid
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"}, // parse, persist, rate_limit, panic, read, write
	)

	WSEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_evictions_total",
			Help: "Connections dropped because their send queue was full",
		},
	)

	WSActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_active_rooms",
			Help: "Number of distinct rooms with at least one joined connection",
		},
	)

	// CMS Metrics
	CMSRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cms_request_duration_seconds",
			Help:    "Duration of CMS itinerary writes in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"}, // HTTP status code, or "error" for transport failures
	)

	CMSRequestErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cms_request_errors_total",
			Help: "Total number of failed CMS itinerary writes",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit counts a request rejected by the HTTP rate limiter.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordWSReceived counts an inbound frame by its parsed type.
func RecordWSReceived(msgType string) {
	WSMessagesReceived.WithLabelValues(msgType).Inc()
}

// RecordWSSent counts an outbound frame by type.
func RecordWSSent(msgType string) {
	WSMessagesSent.WithLabelValues(msgType).Inc()
}

// RecordWSError counts a WebSocket error by category.
func RecordWSError(errorType string) {
	WSErrors.WithLabelValues(errorType).Inc()
}

// RecordWSEviction counts a slow consumer being dropped.
func RecordWSEviction() {
	WSEvictions.Inc()
}

// SetWSConnections publishes the current connection and room counts.
func SetWSConnections(connections, rooms int) {
	WSConnections.Set(float64(connections))
	WSActiveRooms.Set(float64(rooms))
}

// RecordCMSRequest records the outcome of a single CMS write.
// statusCode is 0 when the request never produced a response.
func RecordCMSRequest(statusCode int, duration time.Duration, err error) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	CMSRequestDuration.WithLabelValues(status).Observe(duration.Seconds())
	if err != nil {
		CMSRequestErrors.Inc()
	}
}
