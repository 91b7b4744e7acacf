package rosbridge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/semstreams-rosbridge/metric"
)

// Metrics holds Prometheus metrics for a Connection. All methods are nil-safe.
type Metrics struct {
	framesReceived    *prometheus.CounterVec
	framesSent        *prometheus.CounterVec
	decodeErrors      *prometheus.CounterVec
	connectionLost    prometheus.Counter
	connectAttempts   *prometheus.CounterVec
	state             prometheus.Gauge
	queueDepth        prometheus.Gauge
	queueReplacements prometheus.Counter
	serviceOverwrites prometheus.Counter
	teardownFailures  prometheus.Counter
}

func newMetrics(registry *metric.MetricsRegistry, name string) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"connection": name}
	m := &Metrics{
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "rosbridge",
			Subsystem:   "connection",
			Name:        "frames_received_total",
			Help:        "Total frames received from the gateway by op",
			ConstLabels: labels,
		}, []string{"op"}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "rosbridge",
			Subsystem:   "connection",
			Name:        "frames_sent_total",
			Help:        "Total frames sent to the gateway by op",
			ConstLabels: labels,
		}, []string{"op"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "rosbridge",
			Subsystem:   "connection",
			Name:        "decode_errors_total",
			Help:        "Inbound frames dropped by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		connectionLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rosbridge",
			Subsystem:   "connection",
			Name:        "lost_total",
			Help:        "Sessions ended by a socket read failure",
			ConstLabels: labels,
		}),
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "rosbridge",
			Subsystem:   "connection",
			Name:        "connect_attempts_total",
			Help:        "Connection attempts by result",
			ConstLabels: labels,
		}, []string{"result"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "rosbridge",
			Subsystem:   "connection",
			Name:        "state",
			Help:        "Connection state (0=disconnected, 1=connecting, 2=connected)",
			ConstLabels: labels,
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "rosbridge",
			Subsystem:   "queue",
			Name:        "depth",
			Help:        "Topics waiting in the delivery queue",
			ConstLabels: labels,
		}),
		queueReplacements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rosbridge",
			Subsystem:   "queue",
			Name:        "replacements_total",
			Help:        "Queued messages replaced by a newer one for the same topic",
			ConstLabels: labels,
		}),
		serviceOverwrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rosbridge",
			Subsystem:   "service",
			Name:        "overwrites_total",
			Help:        "Service responses overwritten before the pump consumed them",
			ConstLabels: labels,
		}),
		teardownFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rosbridge",
			Subsystem:   "connection",
			Name:        "teardown_failures_total",
			Help:        "Unsubscribe/unadvertise frames that could not be sent",
			ConstLabels: labels,
		}),
	}

	if err := registry.RegisterCounterVec(name, "frames_received", m.framesReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "frames_sent", m.framesSent); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "decode_errors", m.decodeErrors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "connection_lost", m.connectionLost); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(name, "connect_attempts", m.connectAttempts); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(name, "state", m.state); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(name, "queue_depth", m.queueDepth); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "queue_replacements", m.queueReplacements); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "service_overwrites", m.serviceOverwrites); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(name, "teardown_failures", m.teardownFailures); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) received(op string) {
	if m != nil {
		m.framesReceived.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) sent(op string) {
	if m != nil {
		m.framesSent.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) dropped(reason string) {
	if m != nil {
		m.decodeErrors.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) lost() {
	if m != nil {
		m.connectionLost.Inc()
	}
}

func (m *Metrics) attempt(result string) {
	if m != nil {
		m.connectAttempts.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) setState(s State) {
	if m != nil {
		m.state.Set(float64(s))
	}
}

func (m *Metrics) setDepth(depth int) {
	if m != nil {
		m.queueDepth.Set(float64(depth))
	}
}

func (m *Metrics) replaced() {
	if m != nil {
		m.queueReplacements.Inc()
	}
}

func (m *Metrics) serviceOverwritten() {
	if m != nil {
		m.serviceOverwrites.Inc()
	}
}

func (m *Metrics) teardownFailed() {
	if m != nil {
		m.teardownFailures.Inc()
	}
}
