package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Wire format, both directions:
//
//	{ "type": string, "payload": <kind-specific> }
//
// Server -> Client
// PlayerPosition:
//   user_id: number
//   x: number
//   y: number
//   z: number (optional, defaults to 0)
//
// PlayerDisconnected:
//   user_id: number
//
// InitialPlayers:
//   payload is an array of PlayerPosition payloads
//
// Client -> Server
// PlayerPosition: same shape as above
// PlayerLogout:
//   user_id: number

const (
	KindPlayerPosition     = "PlayerPosition"
	KindPlayerDisconnected = "PlayerDisconnected"
	KindInitialPlayers     = "InitialPlayers"
	KindPlayerLogout       = "PlayerLogout"
)

var (
	errMissingUserID = errors.New("missing user_id")
	errMissingX      = errors.New("missing x")
	errMissingY      = errors.New("missing y")
)

// Message is a decoded inbound frame.
type Message interface{ isMessage() }

type PlayerPosition struct {
	UserID  int64
	X, Y, Z float64
}

type PlayerDisconnected struct {
	UserID int64
}

type InitialPlayers struct {
	Players []PlayerPosition
}

func (PlayerPosition) isMessage()     {}
func (PlayerDisconnected) isMessage() {}
func (InitialPlayers) isMessage()     {}

// DecodeError means the frame was not valid JSON at all.
type DecodeError struct {
	Raw   string
	Cause error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode frame: %v", e.Cause) }
func (e *DecodeError) Unwrap() error { return e.Cause }

// UnknownMessage means the envelope parsed but the type is not one we handle.
type UnknownMessage struct {
	Kind string
	Raw  string
}

func (e *UnknownMessage) Error() string { return fmt.Sprintf("unknown message type %q", e.Kind) }

// MalformedPayload means a recognized kind was missing required fields or the
// payload shape did not match.
type MalformedPayload struct {
	Kind  string
	Raw   string
	Cause error
}

func (e *MalformedPayload) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.Kind, e.Cause)
}
func (e *MalformedPayload) Unwrap() error { return e.Cause }

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Pointer fields so an absent field is distinguishable from a zero coordinate.
type positionPayload struct {
	UserID *int64   `json:"user_id"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Z      *float64 `json:"z"`
}

type userPayload struct {
	UserID *int64 `json:"user_id"`
}

// Decode parses one inbound frame. All returned errors are recoverable: the
// caller logs them and drops the frame, the connection stays up.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Raw: string(data), Cause: err}
	}

	switch env.Type {
	case KindPlayerPosition:
		pos, err := decodePosition(env.Payload)
		if err != nil {
			return nil, &MalformedPayload{Kind: env.Type, Raw: string(data), Cause: err}
		}
		return pos, nil

	case KindPlayerDisconnected:
		var p userPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, &MalformedPayload{Kind: env.Type, Raw: string(data), Cause: err}
		}
		if p.UserID == nil {
			return nil, &MalformedPayload{Kind: env.Type, Raw: string(data), Cause: errMissingUserID}
		}
		return PlayerDisconnected{UserID: *p.UserID}, nil

	case KindInitialPlayers:
		var entries []json.RawMessage
		if err := json.Unmarshal(env.Payload, &entries); err != nil {
			return nil, &MalformedPayload{Kind: env.Type, Raw: string(data), Cause: err}
		}
		roster := InitialPlayers{Players: make([]PlayerPosition, 0, len(entries))}
		for _, entry := range entries {
			pos, err := decodePosition(entry)
			if err != nil {
				return nil, &MalformedPayload{Kind: env.Type, Raw: string(data), Cause: err}
			}
			roster.Players = append(roster.Players, pos)
		}
		return roster, nil

	default:
		return nil, &UnknownMessage{Kind: env.Type, Raw: string(data)}
	}
}

func decodePosition(raw json.RawMessage) (PlayerPosition, error) {
	var p positionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return PlayerPosition{}, err
	}
	switch {
	case p.UserID == nil:
		return PlayerPosition{}, errMissingUserID
	case p.X == nil:
		return PlayerPosition{}, errMissingX
	case p.Y == nil:
		return PlayerPosition{}, errMissingY
	}
	pos := PlayerPosition{UserID: *p.UserID, X: *p.X, Y: *p.Y}
	if p.Z != nil {
		pos.Z = *p.Z
	}
	return pos, nil
}

type outPosition struct {
	UserID int64   `json:"user_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
}

type outUser struct {
	UserID int64 `json:"user_id"`
}

type outEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// EncodePosition builds an outbound PlayerPosition frame. All fields are
// primitive, marshalling cannot fail.
func EncodePosition(userID int64, x, y, z float64) []byte {
	data, _ := json.Marshal(outEnvelope{
		Type:    KindPlayerPosition,
		Payload: outPosition{UserID: userID, X: x, Y: y, Z: z},
	})
	return data
}

// EncodeLogout builds the outbound PlayerLogout frame.
func EncodeLogout(userID int64) []byte {
	data, _ := json.Marshal(outEnvelope{
		Type:    KindPlayerLogout,
		Payload: outUser{UserID: userID},
	})
	return data
}
