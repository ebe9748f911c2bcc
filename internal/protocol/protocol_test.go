package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePlayerPosition(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"PlayerPosition","payload":{"user_id":7,"x":1.5,"y":2,"z":3}}`))
	require.NoError(t, err)
	require.Equal(t, PlayerPosition{UserID: 7, X: 1.5, Y: 2, Z: 3}, msg)
}

func TestDecodePlayerPositionDefaultsZ(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"PlayerPosition","payload":{"user_id":7,"x":0,"y":0}}`))
	require.NoError(t, err)
	require.Equal(t, PlayerPosition{UserID: 7, X: 0, Y: 0, Z: 0}, msg)
}

func TestDecodePlayerDisconnected(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"PlayerDisconnected","payload":{"user_id":42}}`))
	require.NoError(t, err)
	require.Equal(t, PlayerDisconnected{UserID: 42}, msg)
}

func TestDecodeInitialPlayers(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"InitialPlayers","payload":[{"user_id":1,"x":2,"y":3},{"user_id":2,"x":4,"y":5,"z":1}]}`))
	require.NoError(t, err)
	roster, ok := msg.(InitialPlayers)
	require.True(t, ok)
	require.Equal(t, []PlayerPosition{
		{UserID: 1, X: 2, Y: 3},
		{UserID: 2, X: 4, Y: 5, Z: 1},
	}, roster.Players)
}

func TestDecodeInitialPlayersEmpty(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"InitialPlayers","payload":[]}`))
	require.NoError(t, err)
	roster, ok := msg.(InitialPlayers)
	require.True(t, ok)
	assert.Empty(t, roster.Players)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{not json`, &DecodeError{}},
		{"unknown type", `{"type":"Teleport","payload":{}}`, &UnknownMessage{}},
		{"position missing user_id", `{"type":"PlayerPosition","payload":{"x":1,"y":2}}`, &MalformedPayload{}},
		{"position missing x", `{"type":"PlayerPosition","payload":{"user_id":1,"y":2}}`, &MalformedPayload{}},
		{"position missing y", `{"type":"PlayerPosition","payload":{"user_id":1,"x":2}}`, &MalformedPayload{}},
		{"position null payload", `{"type":"PlayerPosition","payload":null}`, &MalformedPayload{}},
		{"disconnect missing user_id", `{"type":"PlayerDisconnected","payload":{}}`, &MalformedPayload{}},
		{"roster not an array", `{"type":"InitialPlayers","payload":{"user_id":1}}`, &MalformedPayload{}},
		{"roster entry missing x", `{"type":"InitialPlayers","payload":[{"user_id":1,"y":2}]}`, &MalformedPayload{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Decode([]byte(tc.raw))
			require.Nil(t, msg)
			require.Error(t, err)
			switch tc.want.(type) {
			case *DecodeError:
				var de *DecodeError
				assert.ErrorAs(t, err, &de)
			case *UnknownMessage:
				var um *UnknownMessage
				assert.ErrorAs(t, err, &um)
			case *MalformedPayload:
				var mp *MalformedPayload
				assert.ErrorAs(t, err, &mp)
			}
		})
	}
}

func TestEncodePosition(t *testing.T) {
	data := EncodePosition(9, 3, 4, 0)

	var env struct {
		Type    string `json:"type"`
		Payload struct {
			UserID int64   `json:"user_id"`
			X      float64 `json:"x"`
			Y      float64 `json:"y"`
			Z      float64 `json:"z"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, KindPlayerPosition, env.Type)
	assert.Equal(t, int64(9), env.Payload.UserID)
	assert.Equal(t, 3.0, env.Payload.X)
	assert.Equal(t, 4.0, env.Payload.Y)
	assert.Equal(t, 0.0, env.Payload.Z)
}

func TestEncodeLogout(t *testing.T) {
	data := EncodeLogout(9)

	var env struct {
		Type    string `json:"type"`
		Payload struct {
			UserID int64 `json:"user_id"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, KindPlayerLogout, env.Type)
	assert.Equal(t, int64(9), env.Payload.UserID)
}

func TestEncodedPositionRoundTrips(t *testing.T) {
	msg, err := Decode(EncodePosition(1, 2, 3, 0))
	require.NoError(t, err)
	require.Equal(t, PlayerPosition{UserID: 1, X: 2, Y: 3, Z: 0}, msg)
}
