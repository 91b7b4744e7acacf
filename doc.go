// Package rosbridgerelay connects ROS robots to NATS through a rosbridge
// WebSocket gateway.
//
// The module is organised in layers:
//
//   - rosbridge: the protocol client. A Connection multiplexes topic
//     subscribers, topic publishers and one service-response channel over a
//     single socket, and parks inbound messages in a per-topic latest-value
//     queue that the owner drains with Pump.
//   - relay: binds gateway topics to NATS subjects in both directions and
//     forwards service calls and responses.
//   - natsclient: NATS connection management with status tracking.
//   - config: YAML or JSON configuration with environment overrides.
//   - health, metric: component health checks and Prometheus metrics served
//     over HTTP.
//   - errors, pkg/retry: classified errors and backoff used by the
//     reconnect supervisor.
//
// The rosbridge-relay command in cmd/rosbridge-relay wires these together.
// A Connection never reconnects on its own; the command's supervisor starts
// a new session with exponential backoff whenever one ends.
//
// # Quick Start
//
//	rosbridge-relay --config configs/relay.yaml --log-format text
//
// Gateway host and port can be overridden with ROSBRIDGE_HOST and
// ROSBRIDGE_PORT; see package config for the full list.
package rosbridgerelay
