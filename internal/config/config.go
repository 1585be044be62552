// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package config

import (
	"fmt"
	"time"
)

// Config is the complete relay configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	CMS       CMSConfig       `koanf:"cms"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`          // Read/write timeout for plain HTTP routes
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"` // Grace period for in-flight requests on shutdown
	ServiceName     string        `koanf:"service_name"`     // Shown in the "Connected to <name> collaboration service" greeting
	Environment     string        `koanf:"environment"`
}

// CMSConfig describes the headless CMS that itinerary updates are persisted to.
type CMSConfig struct {
	URL            string               `koanf:"url"`
	APIToken       string               `koanf:"api_token"`
	Timeout        time.Duration        `koanf:"timeout"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker"`
}

// CircuitBreakerConfig tunes the breaker wrapped around the CMS client.
type CircuitBreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxRequests  uint32        `koanf:"max_requests"`  // Requests allowed through while half-open
	Interval     time.Duration `koanf:"interval"`      // Counter reset period while closed
	Timeout      time.Duration `koanf:"timeout"`       // Open -> half-open delay
	MinRequests  uint32        `koanf:"min_requests"`  // Requests required before the failure ratio is considered
	FailureRatio float64       `koanf:"failure_ratio"` // Trip when failures/requests >= this
}

// WebSocketConfig tunes per-connection transport behavior.
type WebSocketConfig struct {
	SendBuffer         int           `koanf:"send_buffer"`
	MaxMessageSize     int64         `koanf:"max_message_size"`
	WriteWait          time.Duration `koanf:"write_wait"`
	PongWait           time.Duration `koanf:"pong_wait"`
	HandshakeTimeout   time.Duration `koanf:"handshake_timeout"`
	RateLimitPerSecond float64       `koanf:"rate_limit_per_second"` // 0 disables inbound rate limiting
	RateLimitBurst     int           `koanf:"rate_limit_burst"`
}

// PingPeriod returns the keepalive ping interval derived from PongWait.
func (w WebSocketConfig) PingPeriod() time.Duration {
	return (w.PongWait * 9) / 10
}

// SecurityConfig holds origin and HTTP rate limit settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config for the config file.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, config file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsDevelopment reports whether the relay runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "" || c.Server.Environment == "development"
}

// AllowsAnyOrigin reports whether CORS_ORIGINS contains the "*" wildcard.
func (c *Config) AllowsAnyOrigin() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}
