package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains process-level metrics shared by every service in the relay
type Metrics struct {
	ServiceStatus  *prometheus.GaugeVec
	ErrorsTotal    *prometheus.CounterVec
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// Service status values for RecordServiceStatus
const (
	StatusStopped  = 0
	StatusStarting = 1
	StatusRunning  = 2
	StatusStopping = 3
	StatusFailed   = 4
)

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rosbridge",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rosbridge",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by service and class",
			},
			[]string{"service", "class"},
		),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rosbridge",
			Subsystem: "nats",
			Name:      "connected",
			Help:      "NATS connection status (0=disconnected, 1=connected)",
		}),
		NATSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rosbridge",
			Subsystem: "nats",
			Name:      "reconnects_total",
			Help:      "Total number of NATS reconnections",
		}),
	}
}

func (m *Metrics) register(r *prometheus.Registry) {
	r.MustRegister(m.ServiceStatus, m.ErrorsTotal, m.NATSConnected, m.NATSReconnects)
}

// RecordServiceStatus sets the status gauge for a service
func (m *Metrics) RecordServiceStatus(service string, status int) {
	m.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordError counts an error under its class label
func (m *Metrics) RecordError(service, class string) {
	m.ErrorsTotal.WithLabelValues(service, class).Inc()
}

// RecordNATSConnected sets the NATS connection gauge
func (m *Metrics) RecordNATSConnected(connected bool) {
	if connected {
		m.NATSConnected.Set(1)
		return
	}
	m.NATSConnected.Set(0)
}
