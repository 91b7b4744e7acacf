package rosbridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semstreams-rosbridge/errors"
)

func TestEncode_ControlFrames(t *testing.T) {
	tests := []struct {
		name     string
		encode   func() ([]byte, error)
		expected string
	}{
		{
			name:     "subscribe",
			encode:   func() ([]byte, error) { return EncodeSubscribe("/pose", "geometry_msgs/Pose") },
			expected: `{"op":"subscribe","topic":"/pose","type":"geometry_msgs/Pose"}`,
		},
		{
			name:     "unsubscribe",
			encode:   func() ([]byte, error) { return EncodeUnsubscribe("/pose") },
			expected: `{"op":"unsubscribe","topic":"/pose"}`,
		},
		{
			name:     "advertise",
			encode:   func() ([]byte, error) { return EncodeAdvertise("/tf", "tf2_msgs/TFMessage") },
			expected: `{"op":"advertise","topic":"/tf","type":"tf2_msgs/TFMessage"}`,
		},
		{
			name:     "unadvertise",
			encode:   func() ([]byte, error) { return EncodeUnadvertise("/tf") },
			expected: `{"op":"unadvertise","topic":"/tf"}`,
		},
		{
			name:     "publish",
			encode:   func() ([]byte, error) { return EncodePublish("/t", json.RawMessage(`{"data":1}`)) },
			expected: `{"op":"publish","topic":"/t","msg":{"data":1}}`,
		},
		{
			name:     "call service",
			encode:   func() ([]byte, error) { return EncodeCallService("/reset", json.RawMessage(`{}`), "abc") },
			expected: `{"op":"call_service","id":"abc","service":"/reset","args":{}}`,
		},
		{
			name:     "call service without args or id",
			encode:   func() ([]byte, error) { return EncodeCallService("/reset", nil, "") },
			expected: `{"op":"call_service","service":"/reset"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.encode()
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestEncodePublish_InvalidPayload(t *testing.T) {
	_, err := EncodePublish("/t", json.RawMessage(`{not json`))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidMessage)
	assert.True(t, errors.IsInvalid(err))

	_, err = EncodePublish("/t", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidMessage)
}

func TestEncodeCallService_InvalidArgs(t *testing.T) {
	_, err := EncodeCallService("/reset", json.RawMessage(`{ok:true}`), "")
	assert.ErrorIs(t, err, errors.ErrInvalidMessage)
}

func TestPublish_RoundTrip(t *testing.T) {
	payload := json.RawMessage(`{"position":{"x":1.5,"y":-2,"z":0},"label":"a\"b"}`)

	data, err := EncodePublish("/t", payload)
	require.NoError(t, err)

	frame, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, FramePublish, frame.Kind)
	assert.Equal(t, "/t", frame.Topic)
	assert.JSONEq(t, string(payload), string(frame.Msg))
}

func TestDecode_ServiceResponse(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		expected string
	}{
		{"string values", `{"op":"service_response","service":"/reset","values":"{ok:true}"}`, "{ok:true}"},
		{"object values", `{"op":"service_response","service":"/reset","values":{"ok":true}}`, `{"ok":true}`},
		{"missing values", `{"op":"service_response","service":"/reset"}`, ""},
		{"null values", `{"op":"service_response","service":"/reset","values":null}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, FrameServiceResponse, frame.Kind)
			assert.Equal(t, "/reset", frame.Service)
			assert.Equal(t, tt.expected, frame.Values)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `{"op":`},
		{"not an object", `[1,2,3]`},
		{"missing op", `{"topic":"/t","msg":{}}`},
		{"unknown op", `{"op":"status","level":"error"}`},
		{"publish without topic", `{"op":"publish","msg":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.frame))
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrProtocolDecode)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestDecode_EmptyFrame(t *testing.T) {
	for _, data := range [][]byte{nil, {}, []byte("  \n")} {
		frame, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, FrameEmpty, frame.Kind)
	}
}
