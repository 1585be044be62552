// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is built lazily and shared; it caches struct
// metadata, so it must not be recreated per request. Field names in error
// messages come from json tags, so a missing roomId is reported as
// "roomId is required" rather than "RoomID is required".
//
// Example:
//
//	type JoinRoom struct {
//	    RoomID string `json:"roomId" validate:"required"`
//	    UserID string `json:"userId" validate:"required"`
//	}
//
//	if verr := validation.ValidateStruct(&msg); verr != nil {
//	    return verr // "roomId is required; userId is required"
//	}
package validation
