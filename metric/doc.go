// Package metric provides the Prometheus registry and HTTP endpoint used by the
// rosbridge relay.
//
// Components register their own collectors under a service name; duplicate
// registrations are rejected with an Invalid-class error instead of panicking:
//
//	registry := metric.NewMetricsRegistry()
//	conn, err := rosbridge.NewConnection(rosbridge.WithName("gateway"), rosbridge.WithMetrics(registry))
//
//	server := metric.NewServer(9091, "/metrics", registry, healthHandler)
//	go server.Start()
//
// Core process metrics (service status, error counts, NATS connectivity) are
// registered automatically and reachable through CoreMetrics.
package metric
