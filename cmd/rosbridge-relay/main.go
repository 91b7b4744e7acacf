// Package main implements rosbridge-relay, which bridges one rosbridge
// gateway to NATS: gateway topics are published on subjects, subjects are
// advertised back as gateway topics, and service calls travel both ways.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/semstreams-rosbridge/config"
	"github.com/c360/semstreams-rosbridge/health"
	"github.com/c360/semstreams-rosbridge/metric"
	"github.com/c360/semstreams-rosbridge/natsclient"
	"github.com/c360/semstreams-rosbridge/pkg/tlsutil"
	"github.com/c360/semstreams-rosbridge/relay"
	"github.com/c360/semstreams-rosbridge/rosbridge"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "rosbridge-relay"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(os.Stdout, cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting rosbridge relay",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Debug("Configuration loaded", "config", cfg.String())

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	registry := metric.NewMetricsRegistry()
	core := registry.CoreMetrics()
	core.RecordServiceStatus(appName, metric.StatusStarting)

	natsClient, err := connectToNATS(signalCtx, cfg, registry, logger)
	if err != nil {
		core.RecordServiceStatus(appName, metric.StatusFailed)
		return err
	}
	defer closeNATS(natsClient, cliCfg.ShutdownTimeout)

	conn, err := newGatewayConnection(cfg, registry, logger)
	if err != nil {
		core.RecordServiceStatus(appName, metric.StatusFailed)
		return err
	}
	defer func() {
		if err := conn.Disconnect(); err != nil {
			slog.Warn("Gateway disconnect failed", "error", err)
		}
	}()

	r, err := relay.New(relay.ConfigFrom(cfg), natsClient, conn,
		relay.WithLogger(logger), relay.WithMetrics(registry))
	if err != nil {
		return fmt.Errorf("create relay: %w", err)
	}
	if err := r.Attach(signalCtx); err != nil {
		return fmt.Errorf("attach relay: %w", err)
	}

	monitor := health.NewMonitor()
	monitor.Register("gateway", conn.Health)
	monitor.Register("nats", natsClient.Health)

	if cfg.Metrics.Enabled {
		server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry, health.Handler(monitor, appName))
		go func() {
			if err := server.Start(); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() { _ = server.Stop() }()
		slog.Info("Metrics server started", "address", server.Address())
	}

	sup := &supervisor{
		conn:     conn,
		host:     cfg.Gateway.Host,
		port:     cfg.Gateway.Port,
		policy:   cfg.Reconnect,
		interval: cfg.Pump.Interval,
		logger:   logger,
	}

	core.RecordServiceStatus(appName, metric.StatusRunning)
	slog.Info("Relay running", "gateway", conn.URL(cfg.Gateway.Host, cfg.Gateway.Port), "nats", natsClient.URL())

	err = sup.run(signalCtx)
	core.RecordServiceStatus(appName, metric.StatusStopping)
	if err != nil {
		core.RecordServiceStatus(appName, metric.StatusFailed)
		return fmt.Errorf("supervise gateway: %w", err)
	}

	slog.Info("Received shutdown signal")
	core.RecordServiceStatus(appName, metric.StatusStopped)
	return nil
}

// connectToNATS creates the NATS client and waits for the first connection
func connectToNATS(ctx context.Context, cfg *config.Config, registry *metric.MetricsRegistry, logger *slog.Logger) (*natsclient.Client, error) {
	opts, err := natsOptions(cfg.NATS, registry, logger)
	if err != nil {
		return nil, err
	}

	client, err := natsclient.NewClient(cfg.NATS.URLs, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", client.URL())
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}
	return client, nil
}

func closeNATS(client *natsclient.Client, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Close(ctx); err != nil {
		slog.Warn("NATS close failed", "error", err)
	}
}

// natsOptions translates the nats section into client options
func natsOptions(cfg config.NATSConfig, registry *metric.MetricsRegistry, logger *slog.Logger) ([]natsclient.ClientOption, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(registry),
		natsclient.WithMaxReconnects(cfg.MaxReconnects),
	}
	if cfg.Name != "" {
		opts = append(opts, natsclient.WithName(cfg.Name))
	}
	if cfg.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.ReconnectWait))
	}
	if cfg.PingInterval > 0 {
		opts = append(opts, natsclient.WithPingInterval(cfg.PingInterval))
	}
	if cfg.DrainTimeout > 0 {
		opts = append(opts, natsclient.WithDrainTimeout(cfg.DrainTimeout))
	}
	if cfg.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.Token))
	}
	if cfg.TLS != nil {
		tlsConfig, err := tlsutil.LoadClientTLSConfig(*cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("load NATS TLS config: %w", err)
		}
		opts = append(opts, natsclient.WithTLS(tlsConfig))
	}
	return opts, nil
}

// newGatewayConnection builds the rosbridge connection from the gateway section
func newGatewayConnection(cfg *config.Config, registry *metric.MetricsRegistry, logger *slog.Logger) (*rosbridge.Connection, error) {
	dialer := rosbridge.DefaultWebSocketDialer()
	if cfg.Gateway.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = cfg.Gateway.HandshakeTimeout
	}
	if cfg.Gateway.WriteTimeout > 0 {
		dialer.WriteTimeout = cfg.Gateway.WriteTimeout
	}
	if cfg.Gateway.Scheme == "wss" {
		tlsConfig, err := tlsutil.LoadClientTLSConfig(cfg.Gateway.TLS)
		if err != nil {
			return nil, fmt.Errorf("load gateway TLS config: %w", err)
		}
		dialer.TLSClientConfig = tlsConfig
	}

	opts := []rosbridge.Option{
		rosbridge.WithDialer(dialer),
		rosbridge.WithScheme(cfg.Gateway.Scheme),
		rosbridge.WithPath(cfg.Gateway.Path),
		rosbridge.WithLogger(logger),
		rosbridge.WithMetrics(registry),
	}
	if cfg.Gateway.Name != "" {
		opts = append(opts, rosbridge.WithName(cfg.Gateway.Name))
	}

	conn, err := rosbridge.NewConnection(opts...)
	if err != nil {
		return nil, fmt.Errorf("create gateway connection: %w", err)
	}
	return conn, nil
}
