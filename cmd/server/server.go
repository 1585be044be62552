// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/tripsync/internal/api"
	"github.com/tomtom215/tripsync/internal/config"
	"github.com/tomtom215/tripsync/internal/gateway"
	"github.com/tomtom215/tripsync/internal/logging"
	"github.com/tomtom215/tripsync/internal/supervisor"
	"github.com/tomtom215/tripsync/internal/supervisor/services"
	ws "github.com/tomtom215/tripsync/internal/websocket"
)

// startupPingTimeout bounds the CMS reachability check at boot.
const startupPingTimeout = 5 * time.Second

// cmsGateway is what the relay needs from the CMS: writes for the hub and
// a health probe for readiness.
type cmsGateway interface {
	gateway.Persister
	gateway.Pinger
}

// runServer wires the relay and blocks until ctx is canceled.
func runServer(ctx context.Context, cfg *config.Config) error {
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", buildVersion()).
		Str("environment", cfg.Server.Environment).
		Str("cms_url", cfg.CMS.URL).
		Bool("cms_token_set", cfg.CMS.APIToken != "").
		Bool("circuit_breaker", cfg.CMS.CircuitBreaker.Enabled).
		Msg("Starting TripSync relay")

	cms := newGateway(cfg)
	pingCMS(ctx, cms)

	hub := ws.NewHub(cms, hubConfig(cfg))

	handler := api.NewHandler(hub, cms, cfg)
	router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(cfg.Security))
	server := newHTTPServer(cfg, router.SetupChi())

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown requested, waiting for services to stop")
		runErr = <-errCh
	case runErr = <-errCh:
	}
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		runErr = nil
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	if runErr != nil {
		return fmt.Errorf("supervisor tree: %w", runErr)
	}
	logging.Info().Msg("TripSync relay stopped")
	return nil
}

// newGateway builds the CMS client, wrapped in a circuit breaker when enabled.
func newGateway(cfg *config.Config) cmsGateway {
	client := gateway.NewClient(cfg.CMS.URL, cfg.CMS.APIToken, cfg.CMS.Timeout)
	if !cfg.CMS.CircuitBreaker.Enabled {
		return client
	}
	return gateway.NewCircuitBreakerClient(client, cfg.CMS.CircuitBreaker)
}

// pingCMS logs whether the CMS answers. An unreachable CMS is not fatal:
// readiness reports it and every update fails with an error frame.
func pingCMS(ctx context.Context, cms gateway.Pinger) {
	pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()

	if err := cms.Ping(pingCtx); err != nil {
		logging.Warn().Err(err).Msg("CMS not reachable at startup; itinerary updates will fail until it is")
		return
	}
	logging.Info().Msg("Connected to CMS")
}

func hubConfig(cfg *config.Config) ws.HubConfig {
	return ws.HubConfig{
		ServiceName:    cfg.Server.ServiceName,
		SendBuffer:     cfg.WebSocket.SendBuffer,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		RateLimit:      cfg.WebSocket.RateLimitPerSecond,
		RateLimitBurst: cfg.WebSocket.RateLimitBurst,
	}
}

// newHTTPServer builds the listener. The upgrader clears the server's
// deadlines on hijack, so the read and write timeouts only bound plain routes.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
}

// printConfigSummary writes the effective settings, without secrets.
func printConfigSummary(w io.Writer, cfg *config.Config) {
	token := "unset"
	if cfg.CMS.APIToken != "" {
		token = "set"
	}
	breaker := "disabled"
	if cfg.CMS.CircuitBreaker.Enabled {
		breaker = "enabled"
	}
	wsRate := "unlimited"
	if cfg.WebSocket.RateLimitPerSecond > 0 {
		wsRate = fmt.Sprintf("%g/s burst %d", cfg.WebSocket.RateLimitPerSecond, cfg.WebSocket.RateLimitBurst)
	}

	fmt.Fprintln(w, "configuration OK")
	fmt.Fprintf(w, "  listen:          %s (%s)\n", cfg.Addr(), cfg.Server.Environment)
	fmt.Fprintf(w, "  service name:    %s\n", cfg.Server.ServiceName)
	fmt.Fprintf(w, "  cms url:         %s (token %s, timeout %s)\n", cfg.CMS.URL, token, cfg.CMS.Timeout)
	fmt.Fprintf(w, "  circuit breaker: %s\n", breaker)
	fmt.Fprintf(w, "  allowed origins: %s\n", strings.Join(cfg.Security.CORSOrigins, ", "))
	fmt.Fprintf(w, "  send buffer:     %d frames\n", cfg.WebSocket.SendBuffer)
	fmt.Fprintf(w, "  inbound rate:    %s\n", wsRate)
	fmt.Fprintf(w, "  log level:       %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)
}
