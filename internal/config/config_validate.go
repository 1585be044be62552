// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateCMS(); err != nil {
		return err
	}

	if err := c.validateWebSocket(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got: %v", c.Server.Timeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive, got: %v", c.Server.ShutdownTimeout)
	}
	if strings.TrimSpace(c.Server.ServiceName) == "" {
		return fmt.Errorf("SERVICE_NAME must not be empty")
	}
	return nil
}

func (c *Config) validateCMS() error {
	if c.CMS.URL == "" {
		return fmt.Errorf("STRAPI_URL is required")
	}
	if err := validateHTTPURL(c.CMS.URL, "STRAPI_URL"); err != nil {
		return fmt.Errorf("STRAPI_URL is invalid: %w", err)
	}
	if c.CMS.Timeout <= 0 {
		return fmt.Errorf("STRAPI_TIMEOUT must be positive, got: %v", c.CMS.Timeout)
	}

	cb := c.CMS.CircuitBreaker
	if !cb.Enabled {
		return nil
	}
	if cb.FailureRatio <= 0 || cb.FailureRatio > 1 {
		return fmt.Errorf("CMS_CIRCUIT_FAILURE_RATIO must be in (0, 1], got: %v", cb.FailureRatio)
	}
	if cb.Timeout <= 0 {
		return fmt.Errorf("CMS_CIRCUIT_TIMEOUT must be positive, got: %v", cb.Timeout)
	}
	if cb.MaxRequests == 0 {
		return fmt.Errorf("CMS_CIRCUIT_MAX_REQUESTS must be at least 1")
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	ws := c.WebSocket
	if ws.SendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be at least 1, got: %d", ws.SendBuffer)
	}
	if ws.MaxMessageSize < 1 {
		return fmt.Errorf("WS_MAX_MESSAGE_SIZE must be at least 1, got: %d", ws.MaxMessageSize)
	}
	if ws.WriteWait <= 0 || ws.PongWait <= 0 || ws.HandshakeTimeout <= 0 {
		return fmt.Errorf("websocket timeouts must be positive (write_wait=%v pong_wait=%v handshake_timeout=%v)",
			ws.WriteWait, ws.PongWait, ws.HandshakeTimeout)
	}
	if ws.RateLimitPerSecond < 0 {
		return fmt.Errorf("WS_RATE_LIMIT must not be negative, got: %v", ws.RateLimitPerSecond)
	}
	if ws.RateLimitPerSecond > 0 && ws.RateLimitBurst < 1 {
		return fmt.Errorf("WS_RATE_LIMIT_BURST must be at least 1 when WS_RATE_LIMIT is set, got: %d", ws.RateLimitBurst)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must contain at least one origin (use * to allow any)")
	}
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got: %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got: %v", c.Security.RateLimitWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got: %s", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got: %s", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL validates that a URL is properly formatted for HTTP/HTTPS services.
// Validates: scheme (http/https), host present, no query params.
// A path prefix is allowed so the CMS can sit behind a reverse proxy.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}
