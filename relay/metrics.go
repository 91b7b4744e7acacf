package relay

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/semstreams-rosbridge/metric"
)

type relayMetrics struct {
	messages *prometheus.CounterVec
	drops    *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

func newRelayMetrics(registry *metric.MetricsRegistry) (*relayMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &relayMetrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rosbridge",
			Subsystem: "relay",
			Name:      "messages_total",
			Help:      "Messages relayed by direction",
		}, []string{"direction"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rosbridge",
			Subsystem: "relay",
			Name:      "dropped_total",
			Help:      "Messages dropped because the gateway was disconnected",
		}, []string{"direction"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rosbridge",
			Subsystem: "relay",
			Name:      "errors_total",
			Help:      "Relay failures by direction and error class",
		}, []string{"direction", "class"}),
	}

	if err := registry.RegisterCounterVec("relay", "messages", m.messages); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("relay", "dropped", m.drops); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("relay", "errors", m.errors); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *relayMetrics) relayed(direction string) {
	if m != nil {
		m.messages.WithLabelValues(direction).Inc()
	}
}

func (m *relayMetrics) dropped(direction string) {
	if m != nil {
		m.drops.WithLabelValues(direction).Inc()
	}
}

func (m *relayMetrics) failed(direction, class string) {
	if m != nil {
		m.errors.WithLabelValues(direction, class).Inc()
	}
}
