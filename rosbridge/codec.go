package rosbridge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/c360/semstreams-rosbridge/errors"
)

// Gateway operations understood by the codec
const (
	OpSubscribe       = "subscribe"
	OpUnsubscribe     = "unsubscribe"
	OpAdvertise       = "advertise"
	OpUnadvertise     = "unadvertise"
	OpPublish         = "publish"
	OpCallService     = "call_service"
	OpServiceResponse = "service_response"
)

// FrameKind tells what a decoded inbound frame carries
type FrameKind int

const (
	// FrameEmpty is an empty frame; it is ignored without error
	FrameEmpty FrameKind = iota
	// FramePublish carries a topic message
	FramePublish
	// FrameServiceResponse carries the result of a service call
	FrameServiceResponse
)

// Frame is one decoded inbound frame
type Frame struct {
	Kind    FrameKind
	Topic   string
	Msg     json.RawMessage
	Service string
	Values  string
}

type topicTypeFrame struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
	Type  string `json:"type"`
}

type topicFrame struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
}

type publishFrame struct {
	Op    string          `json:"op"`
	Topic string          `json:"topic"`
	Msg   json.RawMessage `json:"msg"`
}

type callServiceFrame struct {
	Op      string          `json:"op"`
	ID      string          `json:"id,omitempty"`
	Service string          `json:"service"`
	Args    json.RawMessage `json:"args,omitempty"`
}

type inboundFrame struct {
	Op      *string         `json:"op"`
	Topic   string          `json:"topic"`
	Msg     json.RawMessage `json:"msg"`
	Service string          `json:"service"`
	Values  json.RawMessage `json:"values"`
}

// EncodeSubscribe builds {"op":"subscribe","topic":T,"type":Y}
func EncodeSubscribe(topic, msgType string) ([]byte, error) {
	return encode("EncodeSubscribe", topicTypeFrame{Op: OpSubscribe, Topic: topic, Type: msgType})
}

// EncodeUnsubscribe builds {"op":"unsubscribe","topic":T}
func EncodeUnsubscribe(topic string) ([]byte, error) {
	return encode("EncodeUnsubscribe", topicFrame{Op: OpUnsubscribe, Topic: topic})
}

// EncodeAdvertise builds {"op":"advertise","topic":T,"type":Y}
func EncodeAdvertise(topic, msgType string) ([]byte, error) {
	return encode("EncodeAdvertise", topicTypeFrame{Op: OpAdvertise, Topic: topic, Type: msgType})
}

// EncodeUnadvertise builds {"op":"unadvertise","topic":T}
func EncodeUnadvertise(topic string) ([]byte, error) {
	return encode("EncodeUnadvertise", topicFrame{Op: OpUnadvertise, Topic: topic})
}

// EncodePublish builds {"op":"publish","topic":T,"msg":P}. The payload must
// be a JSON document.
func EncodePublish(topic string, payload json.RawMessage) ([]byte, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: empty payload for %s", errors.ErrInvalidMessage, topic),
			"codec", "EncodePublish", "validate payload")
	}
	return encode("EncodePublish", publishFrame{Op: OpPublish, Topic: topic, Msg: payload})
}

// EncodeCallService builds {"op":"call_service","id":I,"service":S,"args":A}.
// Empty args and an empty id are omitted.
func EncodeCallService(service string, args json.RawMessage, id string) ([]byte, error) {
	if len(bytes.TrimSpace(args)) == 0 {
		args = nil
	}
	return encode("EncodeCallService", callServiceFrame{Op: OpCallService, ID: id, Service: service, Args: args})
}

func encode(method string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %w", errors.ErrInvalidMessage, err),
			"codec", method, "marshal frame")
	}
	return data, nil
}

// Decode parses one received text frame. Empty frames decode to FrameEmpty.
// Malformed documents, a missing op and unsupported ops return an error
// matching errors.ErrProtocolDecode.
func Decode(data []byte) (Frame, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Frame{Kind: FrameEmpty}, nil
	}

	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		return Frame{}, decodeError(fmt.Errorf("%w: %w", errors.ErrProtocolDecode, err), "unmarshal frame")
	}
	if in.Op == nil {
		return Frame{}, decodeError(fmt.Errorf("%w: missing op", errors.ErrProtocolDecode), "read op")
	}

	switch *in.Op {
	case OpPublish:
		if in.Topic == "" {
			return Frame{}, decodeError(fmt.Errorf("%w: publish without topic", errors.ErrProtocolDecode), "read topic")
		}
		return Frame{Kind: FramePublish, Topic: in.Topic, Msg: in.Msg}, nil

	case OpServiceResponse:
		return Frame{Kind: FrameServiceResponse, Service: in.Service, Values: valuesText(in.Values)}, nil

	default:
		return Frame{}, decodeError(fmt.Errorf("%w: unsupported op %q", errors.ErrProtocolDecode, *in.Op), "dispatch op")
	}
}

func decodeError(err error, action string) error {
	return errors.WrapInvalid(err, "codec", "Decode", action)
}

// valuesText renders service response values for the responder: missing and
// null become "", JSON strings are unquoted, anything else is passed as its
// JSON text.
func valuesText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
