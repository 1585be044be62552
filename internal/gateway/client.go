// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tripsync/internal/logging"
	"github.com/tomtom215/tripsync/internal/metrics"
)

// Persister stores an itinerary update. Implementations must be safe for
// concurrent use; the relay calls Persist from every connection's read loop.
type Persister interface {
	Persist(ctx context.Context, itineraryID string, update json.RawMessage) error
}

// Pinger reports whether the CMS is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Client talks to the Strapi REST API.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a Strapi client. A zero timeout falls back to 30s.
func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	// Normalize URL (remove trailing slash)
	baseURL = strings.TrimSuffix(baseURL, "/")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// updateBody is the Strapi v4 envelope for entity writes.
type updateBody struct {
	Data json.RawMessage `json:"data"`
}

// Persist writes update to the itinerary identified by itineraryID.
func (c *Client) Persist(ctx context.Context, itineraryID string, update json.RawMessage) error {
	if len(update) == 0 {
		update = json.RawMessage("null")
	}

	body, err := json.Marshal(updateBody{Data: update})
	if err != nil {
		return &PersistenceError{ItineraryID: itineraryID, Err: err}
	}

	endpoint := "/api/itineraries/" + url.PathEscape(itineraryID)

	start := time.Now()
	resp, err := c.doRequest(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		metrics.RecordCMSRequest(0, time.Since(start), err)
		logging.Ctx(ctx).Warn().Err(err).Str("itinerary_id", itineraryID).Msg("CMS write failed")
		return &PersistenceError{ItineraryID: itineraryID, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := statusError(resp.StatusCode)
		metrics.RecordCMSRequest(resp.StatusCode, time.Since(start), err)
		logging.Ctx(ctx).Warn().
			Int("status", resp.StatusCode).
			Str("itinerary_id", itineraryID).
			Msg("CMS rejected itinerary update")
		return &PersistenceError{ItineraryID: itineraryID, StatusCode: resp.StatusCode, Err: err}
	}

	metrics.RecordCMSRequest(resp.StatusCode, time.Since(start), nil)
	logging.Ctx(ctx).Debug().
		Int("status", resp.StatusCode).
		Str("itinerary_id", itineraryID).
		Dur("duration", time.Since(start)).
		Msg("Itinerary persisted")
	return nil
}

// Ping checks the Strapi health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/_health", http.NoBody)
	if err != nil {
		return fmt.Errorf("cms ping failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("cms ping returned status %d", resp.StatusCode)
	}
	return nil
}

// BaseURL returns the normalized CMS base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an authenticated request against the Strapi API
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, error) {
	fullURL := c.baseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}
