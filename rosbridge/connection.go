package rosbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/c360/semstreams-rosbridge/errors"
	"github.com/c360/semstreams-rosbridge/metric"
)

// State is the connection lifecycle state
type State int32

const (
	// Disconnected means no socket is open or being opened
	Disconnected State = iota
	// Connecting means a dial or handshake is in flight
	Connecting
	// Connected means the handshake was sent and the receive loop is running
	Connected
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Option configures a Connection
type Option func(*options)

type options struct {
	name            string
	logger          *slog.Logger
	dialer          Dialer
	scheme          string
	path            string
	metricsRegistry *metric.MetricsRegistry
}

// WithName sets the connection name used in logs and metric labels
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets the logger; slog.Default() is used otherwise
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDialer injects the socket implementation
func WithDialer(d Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithScheme sets the URL scheme ("ws" or "wss")
func WithScheme(scheme string) Option {
	return func(o *options) {
		if scheme != "" {
			o.scheme = scheme
		}
	}
}

// WithPath sets the URL path appended to host:port
func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithMetrics exports connection metrics through registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.metricsRegistry = registry
	}
}

// Connection is a single rosbridge session multiplexing topics and one
// service channel. Frames are read on an internal goroutine; parsed messages
// wait in a DeliveryQueue until the owner calls Pump.
type Connection struct {
	name    string
	logger  *slog.Logger
	dialer  Dialer
	scheme  string
	path    string
	metrics *Metrics
	queue   *DeliveryQueue

	mu        sync.Mutex
	state     State
	sess      *session
	reg       registrants
	responder *ServiceDescriptor
	lastErr   error
}

// session is one connection attempt and, if it succeeds, the socket's lifetime
type session struct {
	url    string
	reg    registrants
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	socket   Socket
	closed   bool
	doneOnce sync.Once
}

// setSocket stores sock unless the session was already closed, in which case
// sock is closed and false is returned
func (s *session) setSocket(sock Socket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = sock.Close()
		return false
	}
	s.socket = sock
	return true
}

func (s *session) getSocket() Socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.socket
}

func (s *session) closeSocket() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sock := s.socket
	s.mu.Unlock()

	if sock == nil {
		return nil
	}
	return sock.Close()
}

func (s *session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// NewConnection creates a disconnected Connection
func NewConnection(opts ...Option) (*Connection, error) {
	o := options{
		name:   "rosbridge",
		logger: slog.Default(),
		scheme: "ws",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.dialer == nil {
		o.dialer = DefaultWebSocketDialer()
	}

	m, err := newMetrics(o.metricsRegistry, o.name)
	if err != nil {
		return nil, errors.WrapFatal(err, "Connection", "NewConnection", "register metrics")
	}

	return &Connection{
		name:    o.name,
		logger:  o.logger.With("component", "rosbridge", "connection", o.name),
		dialer:  o.dialer,
		scheme:  o.scheme,
		path:    o.path,
		metrics: m,
		queue:   NewDeliveryQueue(),
	}, nil
}

// RegisterSubscriber adds a topic subscriber. Only valid while disconnected.
func (c *Connection) RegisterSubscriber(d TopicDescriptor) error {
	if err := validateSubscriber(d); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRegistrationLocked("RegisterSubscriber"); err != nil {
		return err
	}
	c.reg.subscribers = append(c.reg.subscribers, d)
	return nil
}

// RegisterPublisher adds a topic publisher. Only valid while disconnected.
func (c *Connection) RegisterPublisher(d TopicDescriptor) error {
	if err := validatePublisher(d); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRegistrationLocked("RegisterPublisher"); err != nil {
		return err
	}
	c.reg.publishers = append(c.reg.publishers, d)
	return nil
}

// RegisterServiceResponder sets the service response handler, replacing any
// previous one. Only valid while disconnected.
func (c *Connection) RegisterServiceResponder(d ServiceDescriptor) error {
	if err := validateResponder(d); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkRegistrationLocked("RegisterServiceResponder"); err != nil {
		return err
	}
	c.responder = &d
	return nil
}

func (c *Connection) checkRegistrationLocked(method string) error {
	if c.state != Disconnected || c.sess != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: registration while %s", errors.ErrConfiguration, c.state),
			"Connection", method, "check state")
	}
	return nil
}

// State returns the current lifecycle state
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the handshake completed and the session is live
func (c *Connection) Connected() bool {
	return c.State() == Connected
}

// Done returns a channel closed when the current session ends. With no
// session it returns a closed channel.
func (c *Connection) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return closedChan
	}
	return c.sess.done
}

// Pending returns the number of topics waiting for Pump
func (c *Connection) Pending() int {
	return c.queue.Len()
}

// LastError returns the error that ended the most recent session or connect
// attempt, or nil after a successful connect
func (c *Connection) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Connection) setLastError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}

func (c *Connection) setStateLocked(s State) {
	c.state = s
	c.metrics.setState(s)
}

// URL builds the gateway URL for host and port
func (c *Connection) URL(host string, port int) string {
	u := url.URL{
		Scheme: c.scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   c.path,
	}
	return u.String()
}

// Connect opens the socket, sends one subscribe frame per subscriber and one
// advertise frame per publisher, and starts the receive loop. It blocks until
// the handshake is sent or the attempt fails. Failures return an error
// matching errors.ErrConnection and leave the connection Disconnected. There
// is no automatic retry.
func (c *Connection) Connect(ctx context.Context, host string, port int) error {
	err := c.connect(ctx, host, port)
	if err != nil && !errors.Is(err, errors.ErrAlreadyStarted) {
		c.setLastError(err)
	}
	return err
}

func (c *Connection) connect(ctx context.Context, host string, port int) error {
	if host == "" || port <= 0 || port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: invalid gateway address %q port %d", errors.ErrConfiguration, host, port),
			"Connection", "Connect", "validate address")
	}

	c.mu.Lock()
	if c.state != Disconnected || c.sess != nil {
		state := c.state
		c.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("%w: connection is %s", errors.ErrAlreadyStarted, state),
			"Connection", "Connect", "check state")
	}
	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &session{
		url:    c.URL(host, port),
		reg:    c.reg.clone(),
		ctx:    sessCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.sess = sess
	c.setStateLocked(Connecting)
	c.mu.Unlock()

	// Caller cancellation aborts the dial, not the established session
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	c.logger.Info("Connecting to gateway", "url", sess.url)

	sock, err := c.dialer.Dial(sessCtx, sess.url)
	if err != nil {
		c.abort(sess)
		c.metrics.attempt("dial_failed")
		return connectionError("dial gateway", fmt.Errorf("%s: %w", sess.url, err))
	}
	if !sess.setSocket(sock) {
		c.abort(sess)
		c.metrics.attempt("cancelled")
		return connectionError("open socket", context.Canceled)
	}

	if err := c.handshake(sess); err != nil {
		c.abort(sess)
		c.metrics.attempt("handshake_failed")
		return connectionError("send handshake", err)
	}

	// From here on only Disconnect may cancel the session
	if !stop() {
		c.abort(sess)
		c.metrics.attempt("cancelled")
		return connectionError("complete handshake", ctx.Err())
	}

	c.mu.Lock()
	if c.sess != sess || sessCtx.Err() != nil {
		c.mu.Unlock()
		c.abort(sess)
		c.metrics.attempt("cancelled")
		return connectionError("complete handshake", context.Canceled)
	}
	c.setStateLocked(Connected)
	c.lastErr = nil
	c.mu.Unlock()

	c.metrics.attempt("success")
	c.logger.Info("Connected to gateway",
		"url", sess.url,
		"subscribers", len(sess.reg.subscribers),
		"publishers", len(sess.reg.publishers))

	go c.receiveLoop(sess)
	return nil
}

// ConnectAsync runs Connect on its own goroutine and delivers the result on
// the returned channel. Disconnect cancels the attempt.
func (c *Connection) ConnectAsync(host string, port int) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- c.Connect(context.Background(), host, port)
	}()
	return result
}

func connectionError(action string, err error) error {
	return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrConnection, err), "Connection", "Connect", action)
}

func (c *Connection) handshake(sess *session) error {
	sock := sess.getSocket()

	for _, d := range sess.reg.subscribers {
		if err := c.send(sock, OpSubscribe, d.Topic, func() ([]byte, error) {
			return EncodeSubscribe(d.Topic, d.MessageType)
		}); err != nil {
			return err
		}
	}
	for _, d := range sess.reg.publishers {
		if err := c.send(sock, OpAdvertise, d.Topic, func() ([]byte, error) {
			return EncodeAdvertise(d.Topic, d.MessageType)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) send(sock Socket, op, target string, build func() ([]byte, error)) error {
	frame, err := build()
	if err != nil {
		return err
	}
	if err := sock.WriteFrame(frame); err != nil {
		return fmt.Errorf("send %s %s: %w", op, target, err)
	}
	c.metrics.sent(op)
	c.logger.Debug("Sent frame", "op", op, "target", target)
	return nil
}

// abort tears down a session that never reached Connected or whose socket died
func (c *Connection) abort(sess *session) {
	c.mu.Lock()
	if c.sess == sess {
		c.sess = nil
		c.setStateLocked(Disconnected)
	}
	c.mu.Unlock()

	sess.cancel()
	if err := sess.closeSocket(); err != nil {
		c.logger.Debug("Socket close failed", "error", err)
	}
	sess.finish()
}

// Disconnect sends unsubscribe and unadvertise frames best-effort, closes the
// socket and waits for the receive loop to exit. It cancels an in-flight
// Connect and is a no-op when already disconnected.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	sess := c.sess
	state := c.state
	if sess == nil {
		c.mu.Unlock()
		return nil
	}
	// Detach first so Publish and CallService become no-ops during teardown
	c.sess = nil
	c.mu.Unlock()

	sess.cancel()

	if state == Connected {
		c.logger.Info("Disconnecting from gateway", "url", sess.url)
		c.teardown(sess)
	}

	err := sess.closeSocket()
	if state == Connected {
		<-sess.done
	}

	c.mu.Lock()
	if c.sess == nil {
		c.setStateLocked(Disconnected)
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Debug("Socket close failed", "error", err)
	}
	return nil
}

func (c *Connection) teardown(sess *session) {
	sock := sess.getSocket()

	for _, d := range sess.reg.subscribers {
		if err := c.send(sock, OpUnsubscribe, d.Topic, func() ([]byte, error) {
			return EncodeUnsubscribe(d.Topic)
		}); err != nil {
			c.teardownFailed(err, d.Topic)
		}
	}
	for _, d := range sess.reg.publishers {
		if err := c.send(sock, OpUnadvertise, d.Topic, func() ([]byte, error) {
			return EncodeUnadvertise(d.Topic)
		}); err != nil {
			c.teardownFailed(err, d.Topic)
		}
	}
}

func (c *Connection) teardownFailed(err error, topic string) {
	c.metrics.teardownFailed()
	c.logger.Warn("Teardown frame not sent",
		"topic", topic,
		"error", errors.Wrap(fmt.Errorf("%w: %w", errors.ErrTeardownSend, err), "Connection", "Disconnect", "send teardown"))
}

// receiveLoop reads frames until the socket fails or the session is cancelled
func (c *Connection) receiveLoop(sess *session) {
	defer sess.finish()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Receive loop panic, dropping connection", "panic", r)
			// The socket is still open, so release gateway-side state first
			if c.attached(sess) {
				c.teardown(sess)
			}
			c.abort(sess)
		}
	}()

	sock := sess.getSocket()
	for {
		frame, err := sock.ReadFrame()
		if err != nil {
			if sess.ctx.Err() == nil {
				c.logger.Warn("Connection lost", "url", sess.url, "error", err)
				c.setLastError(errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrConnectionLost, err),
					"Connection", "receiveLoop", "read frame"))
				c.metrics.lost()
				c.abort(sess)
			}
			return
		}
		c.handleFrame(sess, frame)
	}
}

func (c *Connection) handleFrame(sess *session, data []byte) {
	frame, err := Decode(data)
	if err != nil {
		c.metrics.dropped("decode")
		c.logger.Warn("Dropping inbound frame", "error", err, "size", len(data))
		return
	}

	switch frame.Kind {
	case FrameEmpty:
		c.logger.Debug("Ignoring empty frame")

	case FramePublish:
		c.metrics.received(OpPublish)
		c.routePublish(sess, frame)

	case FrameServiceResponse:
		c.metrics.received(OpServiceResponse)
		if c.queue.SetServiceResult(ServiceResult{Service: frame.Service, Payload: frame.Values}) {
			c.metrics.serviceOverwritten()
			c.logger.Debug("Overwrote unconsumed service response", "service", frame.Service)
		}
	}
}

func (c *Connection) routePublish(sess *session, frame Frame) {
	sub, ok := sess.reg.subscriberFor(frame.Topic)
	if !ok {
		return
	}

	msg, err := safeParse(sub.Parse, frame.Msg)
	if err != nil {
		c.metrics.dropped("parse")
		c.logger.Warn("Dropping message",
			"topic", frame.Topic,
			"type", sub.MessageType,
			"error", errors.WrapInvalid(err, "Connection", "routePublish", "parse message"))
		return
	}

	if c.queue.Offer(PendingTask{Topic: frame.Topic, Subscriber: sub, Message: msg}) {
		c.metrics.replaced()
	}
	c.metrics.setDepth(c.queue.Len())
}

func safeParse(parse ParseFunc, payload json.RawMessage) (msg Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: parser panic: %v", errors.ErrParsingFailed, r)
		}
	}()
	return parse(payload)
}

// Pump delivers at most one queued topic message and the pending service
// response, if any, on the caller's goroutine. It never blocks on I/O.
func (c *Connection) Pump() {
	if task, ok := c.queue.Drain(); ok {
		c.metrics.setDepth(c.queue.Len())
		task.Subscriber.Callback(task.Message)
	}

	if result, ok := c.queue.TakeServiceResult(); ok {
		c.mu.Lock()
		responder := c.responder
		c.mu.Unlock()

		if responder == nil {
			c.logger.Error("Service response without responder",
				"service", result.Service,
				"error", errors.ErrConfiguration)
			return
		}
		responder.Respond(result.Service, result.Payload)
	}
}

func (c *Connection) attached(sess *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess == sess
}

func (c *Connection) live() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Connected || c.sess == nil {
		return nil
	}
	return c.sess
}

// Publish sends msg on topic. While not connected it does nothing and returns
// nil. The payload comes from the topic's publisher Produce function when one
// is registered, otherwise from json.Marshal.
func (c *Connection) Publish(topic string, msg Message) error {
	sess := c.live()
	if sess == nil {
		return nil
	}

	payload, err := produce(sess.reg, topic, msg)
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidMessage, err), "Connection", "Publish", "produce payload")
	}

	frame, err := EncodePublish(topic, payload)
	if err != nil {
		return err
	}
	if err := sess.getSocket().WriteFrame(frame); err != nil {
		return errors.WrapTransient(err, "Connection", "Publish", "write frame")
	}
	c.metrics.sent(OpPublish)
	return nil
}

func produce(reg registrants, topic string, msg Message) (json.RawMessage, error) {
	if pub, ok := reg.publisherFor(topic); ok && pub.Produce != nil {
		return pub.Produce(msg)
	}
	switch m := msg.(type) {
	case json.RawMessage:
		return m, nil
	case []byte:
		return json.RawMessage(m), nil
	default:
		return json.Marshal(msg)
	}
}

// CallService sends a call_service frame with args as raw JSON. While not
// connected it does nothing and returns nil. The response arrives through
// Pump; a second call before then overwrites the first response.
func (c *Connection) CallService(service, args string) error {
	sess := c.live()
	if sess == nil {
		return nil
	}

	frame, err := EncodeCallService(service, json.RawMessage(args), uuid.NewString())
	if err != nil {
		return err
	}
	if err := sess.getSocket().WriteFrame(frame); err != nil {
		return errors.WrapTransient(err, "Connection", "CallService", "write frame")
	}
	c.metrics.sent(OpCallService)
	c.logger.Debug("Called service", "service", service)
	return nil
}
