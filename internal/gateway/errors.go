// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package gateway

import (
	"errors"
	"fmt"
)

// PersistenceError reports a failed itinerary write.
//
// Error() returns the underlying reason verbatim so it can be surfaced to the
// editing client. StatusCode is 0 when no HTTP response was received.
type PersistenceError struct {
	ItineraryID string
	StatusCode  int
	Err         error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return "unknown persistence failure"
	}
	return e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err is or wraps a *PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// statusError mirrors the reason string HTTP client libraries commonly
// produce for a non-2xx response.
func statusError(code int) error {
	return fmt.Errorf("Request failed with status code %d", code) //nolint:staticcheck // client-facing text
}
