package rosbridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semstreams-rosbridge/errors"
)

type poseListener struct {
	got []Message
}

func (p *poseListener) MessageType() string { return "geometry_msgs/Pose" }
func (p *poseListener) Topic() string       { return "/pose" }
func (p *poseListener) Parse(payload json.RawMessage) (Message, error) {
	var v map[string]any
	err := json.Unmarshal(payload, &v)
	return v, err
}
func (p *poseListener) OnMessage(msg Message) { p.got = append(p.got, msg) }

type twistPublisher struct{}

func (twistPublisher) MessageType() string { return "geometry_msgs/Twist" }
func (twistPublisher) Topic() string       { return "/cmd_vel" }
func (twistPublisher) Produce(msg Message) (json.RawMessage, error) {
	return json.RawMessage(`{"linear":{"x":` + msg.(string) + `}}`), nil
}

type plainPublisher struct{}

func (plainPublisher) MessageType() string { return "std_msgs/String" }
func (plainPublisher) Topic() string       { return "/chatter" }

type resetResponder struct {
	service, payload string
}

func (r *resetResponder) OnServiceResponse(service, payload string) {
	r.service, r.payload = service, payload
}

func TestSubscriberDescriptor(t *testing.T) {
	l := &poseListener{}
	d := SubscriberDescriptor(l)

	assert.Equal(t, "/pose", d.Topic)
	assert.Equal(t, "geometry_msgs/Pose", d.MessageType)
	require.NoError(t, validateSubscriber(d))

	msg, err := d.Parse(json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	d.Callback(msg)
	assert.Len(t, l.got, 1)
}

func TestPublisherDescriptor(t *testing.T) {
	d := PublisherDescriptor(twistPublisher{})
	require.NotNil(t, d.Produce)
	payload, err := d.Produce("0.5")
	require.NoError(t, err)
	assert.JSONEq(t, `{"linear":{"x":0.5}}`, string(payload))

	plain := PublisherDescriptor(plainPublisher{})
	assert.Nil(t, plain.Produce)
	assert.NoError(t, validatePublisher(plain))
}

func TestServiceResponderDescriptor(t *testing.T) {
	r := &resetResponder{}
	d := ServiceResponderDescriptor(r)
	require.NoError(t, validateResponder(d))

	d.Respond("/reset", "{ok:true}")
	assert.Equal(t, "/reset", r.service)
	assert.Equal(t, "{ok:true}", r.payload)
}

func TestParseRaw_Copies(t *testing.T) {
	buf := json.RawMessage(`{"a":1}`)
	msg, err := ParseRaw(buf)
	require.NoError(t, err)

	buf[2] = 'b'
	assert.Equal(t, json.RawMessage(`{"a":1}`), msg)
}

func TestValidateDescriptors(t *testing.T) {
	parse := func(json.RawMessage) (Message, error) { return nil, nil }
	callback := func(Message) {}

	tests := []struct {
		name  string
		check func() error
	}{
		{"subscriber without topic", func() error {
			return validateSubscriber(TopicDescriptor{MessageType: "a/B", Parse: parse, Callback: callback})
		}},
		{"subscriber without type", func() error {
			return validateSubscriber(TopicDescriptor{Topic: "/t", Parse: parse, Callback: callback})
		}},
		{"subscriber without parse", func() error {
			return validateSubscriber(TopicDescriptor{Topic: "/t", MessageType: "a/B", Callback: callback})
		}},
		{"subscriber without callback", func() error {
			return validateSubscriber(TopicDescriptor{Topic: "/t", MessageType: "a/B", Parse: parse})
		}},
		{"publisher without topic", func() error {
			return validatePublisher(TopicDescriptor{MessageType: "a/B"})
		}},
		{"publisher without type", func() error {
			return validatePublisher(TopicDescriptor{Topic: "/t"})
		}},
		{"responder without function", func() error {
			return validateResponder(ServiceDescriptor{})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrConfiguration)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestRegistrants_LastRegisteredWins(t *testing.T) {
	first := TopicDescriptor{Topic: "/t", MessageType: "a/First"}
	second := TopicDescriptor{Topic: "/t", MessageType: "a/Second"}
	r := registrants{
		subscribers: []TopicDescriptor{first, second},
		publishers:  []TopicDescriptor{first, second},
	}

	sub, ok := r.subscriberFor("/t")
	require.True(t, ok)
	assert.Equal(t, "a/Second", sub.MessageType)

	pub, ok := r.publisherFor("/t")
	require.True(t, ok)
	assert.Equal(t, "a/Second", pub.MessageType)

	_, ok = r.subscriberFor("/other")
	assert.False(t, ok)
}

func TestRegistrants_CloneIsIndependent(t *testing.T) {
	r := registrants{subscribers: []TopicDescriptor{{Topic: "/a"}}}
	snapshot := r.clone()
	r.subscribers = append(r.subscribers, TopicDescriptor{Topic: "/b"})
	r.subscribers[0].Topic = "/changed"

	require.Len(t, snapshot.subscribers, 1)
	assert.Equal(t, "/a", snapshot.subscribers[0].Topic)
}
