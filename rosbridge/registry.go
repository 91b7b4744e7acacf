package rosbridge

import (
	"encoding/json"
	"fmt"

	"github.com/c360/semstreams-rosbridge/errors"
)

// Message is a parsed topic payload. The connection never builds one itself;
// registrants produce and consume them.
type Message = any

// ParseFunc turns a raw "msg" payload into a Message
type ParseFunc func(payload json.RawMessage) (Message, error)

// ProduceFunc turns a Message into a "msg" payload
type ProduceFunc func(msg Message) (json.RawMessage, error)

// CallbackFunc receives a parsed Message on the pump's goroutine
type CallbackFunc func(msg Message)

// TopicDescriptor is the capability set of one topic participant. Subscribers
// need Parse and Callback; publishers may supply Produce.
type TopicDescriptor struct {
	MessageType string
	Topic       string
	Parse       ParseFunc
	Produce     ProduceFunc
	Callback    CallbackFunc
}

// ServiceDescriptor receives service responses
type ServiceDescriptor struct {
	Respond func(service, payload string)
}

// Subscriber is implemented by registrants that consume a topic
type Subscriber interface {
	MessageType() string
	Topic() string
	Parse(payload json.RawMessage) (Message, error)
	OnMessage(msg Message)
}

// Publisher is implemented by registrants that advertise a topic
type Publisher interface {
	MessageType() string
	Topic() string
}

// Producer is optionally implemented by a Publisher that encodes its own payloads
type Producer interface {
	Produce(msg Message) (json.RawMessage, error)
}

// ServiceResponder is implemented by the registrant handling service responses
type ServiceResponder interface {
	OnServiceResponse(service, payload string)
}

// SubscriberDescriptor adapts a Subscriber
func SubscriberDescriptor(s Subscriber) TopicDescriptor {
	return TopicDescriptor{
		MessageType: s.MessageType(),
		Topic:       s.Topic(),
		Parse:       s.Parse,
		Callback:    s.OnMessage,
	}
}

// PublisherDescriptor adapts a Publisher, picking up Produce when implemented
func PublisherDescriptor(p Publisher) TopicDescriptor {
	d := TopicDescriptor{
		MessageType: p.MessageType(),
		Topic:       p.Topic(),
	}
	if producer, ok := p.(Producer); ok {
		d.Produce = producer.Produce
	}
	return d
}

// ServiceResponderDescriptor adapts a ServiceResponder
func ServiceResponderDescriptor(r ServiceResponder) ServiceDescriptor {
	return ServiceDescriptor{Respond: r.OnServiceResponse}
}

// ParseRaw is a ParseFunc that keeps the payload as raw JSON
func ParseRaw(payload json.RawMessage) (Message, error) {
	out := make(json.RawMessage, len(payload))
	copy(out, payload)
	return out, nil
}

func validateSubscriber(d TopicDescriptor) error {
	switch {
	case d.Topic == "":
		return configError("RegisterSubscriber", "missing topic name")
	case d.MessageType == "":
		return configError("RegisterSubscriber", "missing message type for "+d.Topic)
	case d.Parse == nil:
		return configError("RegisterSubscriber", "missing parse function for "+d.Topic)
	case d.Callback == nil:
		return configError("RegisterSubscriber", "missing callback for "+d.Topic)
	}
	return nil
}

func validatePublisher(d TopicDescriptor) error {
	switch {
	case d.Topic == "":
		return configError("RegisterPublisher", "missing topic name")
	case d.MessageType == "":
		return configError("RegisterPublisher", "missing message type for "+d.Topic)
	}
	return nil
}

func validateResponder(d ServiceDescriptor) error {
	if d.Respond == nil {
		return configError("RegisterServiceResponder", "missing responder function")
	}
	return nil
}

func configError(method, reason string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrConfiguration, reason),
		"Connection", method, "validate descriptor")
}

// registrants is the set of descriptors one session works with
type registrants struct {
	subscribers []TopicDescriptor
	publishers  []TopicDescriptor
}

func (r registrants) clone() registrants {
	return registrants{
		subscribers: append([]TopicDescriptor(nil), r.subscribers...),
		publishers:  append([]TopicDescriptor(nil), r.publishers...),
	}
}

// subscriberFor returns the most recently registered subscriber for topic
func (r registrants) subscriberFor(topic string) (TopicDescriptor, bool) {
	for i := len(r.subscribers) - 1; i >= 0; i-- {
		if r.subscribers[i].Topic == topic {
			return r.subscribers[i], true
		}
	}
	return TopicDescriptor{}, false
}

func (r registrants) publisherFor(topic string) (TopicDescriptor, bool) {
	for i := len(r.publishers) - 1; i >= 0; i-- {
		if r.publishers[i].Topic == topic {
			return r.publishers[i], true
		}
	}
	return TopicDescriptor{}, false
}
