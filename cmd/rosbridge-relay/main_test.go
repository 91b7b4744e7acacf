package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semstreams-rosbridge/config"
	"github.com/c360/semstreams-rosbridge/metric"
	"github.com/c360/semstreams-rosbridge/natsclient"
	"github.com/c360/semstreams-rosbridge/pkg/tlsutil"
)

func TestNATSOptions(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	base, err := natsOptions(config.NATSConfig{URLs: []string{"nats://localhost:4222"}}, registry, slog.Default())
	require.NoError(t, err)

	full := config.DefaultConfig().NATS
	full.Username, full.Password = "relay", "secret"
	full.Token = "t0ken"
	full.TLS = &tlsutil.ClientConfig{MinVersion: "1.3"}

	opts, err := natsOptions(full, registry, slog.Default())
	require.NoError(t, err)
	// name, reconnect wait, ping interval, drain timeout, credentials, token, TLS
	assert.Len(t, opts, len(base)+7)

	client, err := natsclient.NewClient(full.URLs, opts...)
	require.NoError(t, err)
	assert.Equal(t, "nats://localhost:4222", client.URL())
}

func TestNATSOptions_BadTLS(t *testing.T) {
	cfg := config.DefaultConfig().NATS
	cfg.TLS = &tlsutil.ClientConfig{CAFiles: []string{"/nonexistent/ca.pem"}}

	_, err := natsOptions(cfg, nil, slog.Default())
	assert.Error(t, err)
}

func TestNewGatewayConnection(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Gateway.Name = "turtlebot"
	cfg.Gateway.Path = "/bridge"
	cfg.Gateway.HandshakeTimeout = time.Second

	conn, err := newGatewayConnection(cfg, metric.NewMetricsRegistry(), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "ws://robot:9090/bridge", conn.URL("robot", 9090))
	assert.False(t, conn.Connected())

	cfg.Gateway.Scheme = "wss"
	cfg.Gateway.TLS = tlsutil.ClientConfig{CAFiles: []string{"/nonexistent/ca.pem"}}
	_, err = newGatewayConnection(cfg, nil, slog.Default())
	assert.Error(t, err)
}
