// TripSync - Real-time Itinerary Collaboration Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tripsync

package websocket

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tripsync/internal/validation"
)

// Inbound message types (client -> relay)
const (
	MessageTypeItineraryUpdate = "itinerary-update"
	MessageTypeJoinRoom        = "join-room"
)

// Outbound message types (relay -> client)
const (
	MessageTypeConnection       = "connection"
	MessageTypeItineraryUpdated = "itinerary-updated"
	MessageTypeUserJoined       = "user-joined"
	MessageTypeUserLeft         = "user-left"
	MessageTypeError            = "error"
)

// Error frame messages
const (
	ErrMsgProcessFailed = "Failed to process message"
	ErrMsgUpdateFailed  = "Failed to update itinerary"
)

// TimestampFormat is ISO-8601 in UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in TimestampFormat.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// Inbound is a parsed client frame: *ItineraryUpdate or *JoinRoom.
type Inbound interface {
	MessageType() string
}

// ItineraryUpdate asks the relay to persist and fan out an edit.
// Update is opaque and forwarded byte for byte. An absent update is nil
// and goes out as JSON null, both to the CMS and in itinerary-updated.
type ItineraryUpdate struct {
	ItineraryID string
	Update      json.RawMessage
}

func (*ItineraryUpdate) MessageType() string { return MessageTypeItineraryUpdate }

// JoinRoom tags the sending connection with a room and user.
type JoinRoom struct {
	RoomID string
	UserID string
}

func (*JoinRoom) MessageType() string { return MessageTypeJoinRoom }

// Wire forms. The id keys must be present but any string, "" included,
// is accepted; required on a pointer only rejects nil.
type itineraryUpdateFrame struct {
	ItineraryID *string         `json:"itineraryId" validate:"required"`
	Update      json.RawMessage `json:"update"`
}

type joinRoomFrame struct {
	RoomID *string `json:"roomId" validate:"required"`
	UserID *string `json:"userId" validate:"required"`
}

// ParseError describes a frame that could not be turned into an Inbound.
type ParseError struct {
	Type   string // declared type, empty if unknown
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// envelope reads only the discriminator.
type envelope struct {
	Type *string `json:"type"`
}

// ParseInbound decodes and validates a single client frame.
// The error, when non-nil, is always a *ParseError. Key matching follows
// goccy/go-json and is case-insensitive, so "ROOMID" fills roomId.
func ParseInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Err: err}
	}
	if env.Type == nil {
		return nil, &ParseError{Reason: "missing message type"}
	}

	switch *env.Type {
	case MessageTypeItineraryUpdate:
		var f itineraryUpdateFrame
		if err := decodeFrame(data, *env.Type, &f); err != nil {
			return nil, err
		}
		return &ItineraryUpdate{ItineraryID: *f.ItineraryID, Update: f.Update}, nil
	case MessageTypeJoinRoom:
		var f joinRoomFrame
		if err := decodeFrame(data, *env.Type, &f); err != nil {
			return nil, err
		}
		return &JoinRoom{RoomID: *f.RoomID, UserID: *f.UserID}, nil
	default:
		return nil, &ParseError{Type: *env.Type, Reason: fmt.Sprintf("unknown message type %q", *env.Type)}
	}
}

// decodeFrame fills v from data and checks its validate tags.
func decodeFrame(data []byte, msgType string, v interface{}) *ParseError {
	if err := json.Unmarshal(data, v); err != nil {
		return &ParseError{Type: msgType, Reason: "invalid " + msgType + " payload", Err: err}
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		return &ParseError{Type: msgType, Reason: verr.Error()}
	}
	return nil
}

// ConnectionMessage is the greeting sent once to every new connection.
type ConnectionMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ItineraryUpdatedMessage announces a persisted edit to every connection.
type ItineraryUpdatedMessage struct {
	Type        string          `json:"type"`
	ItineraryID string          `json:"itineraryId"`
	Update      json.RawMessage `json:"update"`
	Timestamp   string          `json:"timestamp"`
}

// PresenceMessage is user-joined or user-left, scoped to one room.
type PresenceMessage struct {
	Type      string `json:"type"`
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp"`
}

// ErrorMessage is sent only to the connection whose frame failed.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// Frame is an encoded outbound message ready for the write pump.
type Frame struct {
	Type string
	Data []byte
}

// encodeFrame marshals an outbound message. Outbound structs contain only
// strings and pre-validated raw JSON, so failure means a bug.
func encodeFrame(msgType string, v interface{}) (Frame, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s frame: %w", msgType, err)
	}
	return Frame{Type: msgType, Data: data}, nil
}

func connectionFrame(serviceName string) (Frame, error) {
	return encodeFrame(MessageTypeConnection, ConnectionMessage{
		Type:    MessageTypeConnection,
		Message: fmt.Sprintf("Connected to %s collaboration service", serviceName),
	})
}

func itineraryUpdatedFrame(itineraryID string, update json.RawMessage, at time.Time) (Frame, error) {
	if len(update) == 0 {
		update = json.RawMessage("null")
	}
	return encodeFrame(MessageTypeItineraryUpdated, ItineraryUpdatedMessage{
		Type:        MessageTypeItineraryUpdated,
		ItineraryID: itineraryID,
		Update:      update,
		Timestamp:   FormatTimestamp(at),
	})
}

func presenceFrame(msgType, roomID, userID string, at time.Time) (Frame, error) {
	return encodeFrame(msgType, PresenceMessage{
		Type:      msgType,
		RoomID:    roomID,
		UserID:    userID,
		Timestamp: FormatTimestamp(at),
	})
}

func errorFrame(message, details string) (Frame, error) {
	return encodeFrame(MessageTypeError, ErrorMessage{
		Type:    MessageTypeError,
		Message: message,
		Details: details,
	})
}
