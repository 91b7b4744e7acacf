package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/c360/semstreams-rosbridge/config"
	"github.com/c360/semstreams-rosbridge/errors"
	"github.com/c360/semstreams-rosbridge/metric"
	"github.com/c360/semstreams-rosbridge/rosbridge"
)

// Directions used in logs and metric labels
const (
	DirectionToNATS          = "to_nats"
	DirectionToROS           = "to_ros"
	DirectionServiceCall     = "service_call"
	DirectionServiceResponse = "service_response"
)

// Publisher sends payloads to NATS subjects
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Bus is a Publisher that can also subscribe. *natsclient.Client implements it.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
}

// Bridge is the rosbridge side. *rosbridge.Connection implements it.
type Bridge interface {
	RegisterSubscriber(d rosbridge.TopicDescriptor) error
	RegisterPublisher(d rosbridge.TopicDescriptor) error
	RegisterServiceResponder(d rosbridge.ServiceDescriptor) error
	Connected() bool
	Publish(topic string, msg rosbridge.Message) error
	CallService(service, args string) error
}

// Config lists what the relay forwards
type Config struct {
	Topics     []config.TopicBinding
	Publishers []config.TopicBinding
	Services   config.ServiceConfig
}

// ConfigFrom extracts the relay bindings from a loaded configuration
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Topics:     cfg.Topics,
		Publishers: cfg.Publishers,
		Services:   cfg.Services,
	}
}

// ServiceCall is the NATS request body for a service call
type ServiceCall struct {
	Service string          `json:"service"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// ServiceResponse is published on the response subject. Values carries the
// gateway's values verbatim when they are JSON, otherwise as a JSON string.
type ServiceResponse struct {
	Service string          `json:"service"`
	Values  json.RawMessage `json:"values"`
}

// Option configures a Relay
type Option func(*Relay)

// WithLogger sets the logger; slog.Default() is used otherwise
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics exports relay counters through registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(r *Relay) {
		r.registry = registry
	}
}

// Relay forwards rosbridge topics to NATS subjects and back, and turns NATS
// requests into service calls. Topic callbacks run on the goroutine that
// pumps the bridge; NATS handlers run on nats.go goroutines.
type Relay struct {
	cfg      Config
	bus      Bus
	bridge   Bridge
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *relayMetrics

	mu       sync.Mutex
	ctx      context.Context
	attached bool
}

// New validates the bindings and creates a Relay
func New(cfg Config, bus Bus, bridge Bridge, opts ...Option) (*Relay, error) {
	if bus == nil || bridge == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: relay needs a bus and a bridge", errors.ErrMissingConfig), "Relay", "New", "check arguments")
	}
	if cfg.Services.Enabled() && cfg.Services.ResponseSubject == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: service call subject without response subject", errors.ErrInvalidConfig), "Relay", "New", "check services")
	}

	r := &Relay{
		cfg:    cfg,
		bus:    bus,
		bridge: bridge,
		logger: slog.Default(),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "relay")

	m, err := newRelayMetrics(r.registry)
	if err != nil {
		return nil, errors.WrapFatal(err, "Relay", "New", "register metrics")
	}
	r.metrics = m
	return r, nil
}

// Attach registers every binding on the bridge and subscribes to the NATS
// subjects. The bridge must still be disconnected and the bus connected.
// ctx bounds the NATS subscriptions and is passed to outgoing publishes.
func (r *Relay) Attach(ctx context.Context) error {
	r.mu.Lock()
	if r.attached {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Relay", "Attach", "check state")
	}
	r.attached = true
	r.ctx = ctx
	r.mu.Unlock()

	for _, b := range r.cfg.Topics {
		if err := r.bridge.RegisterSubscriber(r.subscriber(b)); err != nil {
			return errors.Wrap(err, "Relay", "Attach", "register subscriber "+b.Topic)
		}
	}
	for _, b := range r.cfg.Publishers {
		if err := r.bridge.RegisterPublisher(rosbridge.TopicDescriptor{MessageType: b.Type, Topic: b.Topic}); err != nil {
			return errors.Wrap(err, "Relay", "Attach", "register publisher "+b.Topic)
		}
	}
	if r.cfg.Services.Enabled() {
		if err := r.bridge.RegisterServiceResponder(rosbridge.ServiceDescriptor{Respond: r.respond}); err != nil {
			return errors.Wrap(err, "Relay", "Attach", "register service responder")
		}
	}

	for _, b := range r.cfg.Publishers {
		if err := r.bus.Subscribe(ctx, b.Subject, r.toROS(b)); err != nil {
			return errors.Wrap(err, "Relay", "Attach", "subscribe "+b.Subject)
		}
	}
	if r.cfg.Services.Enabled() {
		if err := r.bus.Subscribe(ctx, r.cfg.Services.CallSubject, r.callService); err != nil {
			return errors.Wrap(err, "Relay", "Attach", "subscribe "+r.cfg.Services.CallSubject)
		}
	}

	r.logger.Info("Relay attached",
		"topics", len(r.cfg.Topics),
		"publishers", len(r.cfg.Publishers),
		"services", r.cfg.Services.Enabled())
	return nil
}

func (r *Relay) publishContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx
}

// subscriber forwards a gateway topic to its subject
func (r *Relay) subscriber(b config.TopicBinding) rosbridge.TopicDescriptor {
	return rosbridge.TopicDescriptor{
		MessageType: b.Type,
		Topic:       b.Topic,
		Parse:       rosbridge.ParseRaw,
		Callback: func(msg rosbridge.Message) {
			payload, ok := msg.(json.RawMessage)
			if !ok {
				r.fail(DirectionToNATS, fmt.Errorf("%w: unexpected message type %T", errors.ErrInvalidData, msg), b.Topic)
				return
			}
			// A publish frame without msg parses to an empty payload
			if !json.Valid(payload) {
				r.fail(DirectionToNATS, fmt.Errorf("%w: message on %s is not JSON", errors.ErrInvalidData, b.Topic), b.Subject)
				return
			}
			if err := r.bus.Publish(r.publishContext(), b.Subject, payload); err != nil {
				r.fail(DirectionToNATS, err, b.Subject)
				return
			}
			r.metrics.relayed(DirectionToNATS)
		},
	}
}

// toROS forwards a subject's payloads to an advertised gateway topic
func (r *Relay) toROS(b config.TopicBinding) func(context.Context, []byte) {
	return func(_ context.Context, data []byte) {
		if !json.Valid(data) {
			r.fail(DirectionToROS, fmt.Errorf("%w: payload on %s is not JSON", errors.ErrInvalidData, b.Subject), b.Topic)
			return
		}
		if !r.bridge.Connected() {
			r.metrics.dropped(DirectionToROS)
			r.logger.Debug("Dropping message while gateway is disconnected", "topic", b.Topic)
			return
		}
		payload := make(json.RawMessage, len(data))
		copy(payload, data)
		if err := r.bridge.Publish(b.Topic, payload); err != nil {
			r.fail(DirectionToROS, err, b.Topic)
			return
		}
		r.metrics.relayed(DirectionToROS)
	}
}

// callService turns a NATS request into a call_service frame
func (r *Relay) callService(_ context.Context, data []byte) {
	var call ServiceCall
	if err := json.Unmarshal(data, &call); err != nil {
		r.fail(DirectionServiceCall, fmt.Errorf("%w: %w", errors.ErrInvalidData, err), r.cfg.Services.CallSubject)
		return
	}
	if call.Service == "" {
		r.fail(DirectionServiceCall, fmt.Errorf("%w: missing service name", errors.ErrInvalidData), r.cfg.Services.CallSubject)
		return
	}
	if !r.bridge.Connected() {
		r.metrics.dropped(DirectionServiceCall)
		r.logger.Debug("Dropping service call while gateway is disconnected", "service", call.Service)
		return
	}
	if err := r.bridge.CallService(call.Service, string(call.Args)); err != nil {
		r.fail(DirectionServiceCall, err, call.Service)
		return
	}
	r.metrics.relayed(DirectionServiceCall)
}

// respond publishes a service response; it runs on the pumping goroutine
func (r *Relay) respond(service, payload string) {
	values := json.RawMessage(payload)
	if payload == "" {
		values = json.RawMessage("null")
	} else if !json.Valid(values) {
		quoted, _ := json.Marshal(payload)
		values = quoted
	}

	data, err := json.Marshal(ServiceResponse{Service: service, Values: values})
	if err != nil {
		r.fail(DirectionServiceResponse, err, service)
		return
	}
	if err := r.bus.Publish(r.publishContext(), r.cfg.Services.ResponseSubject, data); err != nil {
		r.fail(DirectionServiceResponse, err, r.cfg.Services.ResponseSubject)
		return
	}
	r.metrics.relayed(DirectionServiceResponse)
}

func (r *Relay) fail(direction string, err error, target string) {
	r.metrics.failed(direction, errors.Classify(err).String())
	r.logger.Warn("Relay failed", "direction", direction, "target", target, "error", err)
}
