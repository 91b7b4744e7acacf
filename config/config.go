package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/c360/semstreams-rosbridge/errors"
	"github.com/c360/semstreams-rosbridge/pkg/retry"
	"github.com/c360/semstreams-rosbridge/pkg/tlsutil"
)

// Config is the complete rosbridge-relay configuration
type Config struct {
	Gateway    GatewayConfig  `json:"gateway" yaml:"gateway"`
	Topics     []TopicBinding `json:"topics,omitempty" yaml:"topics,omitempty"`         // gateway topic -> NATS subject
	Publishers []TopicBinding `json:"publishers,omitempty" yaml:"publishers,omitempty"` // NATS subject -> gateway topic
	Services   ServiceConfig  `json:"services,omitempty" yaml:"services,omitempty"`
	NATS       NATSConfig     `json:"nats" yaml:"nats"`
	Metrics    MetricsConfig  `json:"metrics" yaml:"metrics"`
	Pump       PumpConfig     `json:"pump" yaml:"pump"`
	Reconnect  retry.Config   `json:"reconnect" yaml:"reconnect"`
}

// GatewayConfig locates the rosbridge server
type GatewayConfig struct {
	Name             string               `json:"name,omitempty" yaml:"name,omitempty"` // Used in logs and metric labels
	Host             string               `json:"host" yaml:"host"`
	Port             int                  `json:"port" yaml:"port"`
	Scheme           string               `json:"scheme,omitempty" yaml:"scheme,omitempty"` // ws or wss
	Path             string               `json:"path,omitempty" yaml:"path,omitempty"`
	HandshakeTimeout time.Duration        `json:"handshake_timeout,omitempty" yaml:"handshake_timeout,omitempty"`
	WriteTimeout     time.Duration        `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty"`
	TLS              tlsutil.ClientConfig `json:"tls,omitempty" yaml:"tls,omitempty"` // Used with wss only
}

// TopicBinding pairs a gateway topic with a NATS subject
type TopicBinding struct {
	Topic   string `json:"topic" yaml:"topic"`
	Type    string `json:"type" yaml:"type"`
	Subject string `json:"subject" yaml:"subject"`
}

// ServiceConfig routes service calls. Requests arriving on CallSubject are
// forwarded to the gateway; responses are published on ResponseSubject.
type ServiceConfig struct {
	CallSubject     string `json:"call_subject,omitempty" yaml:"call_subject,omitempty"`
	ResponseSubject string `json:"response_subject,omitempty" yaml:"response_subject,omitempty"`
}

// Enabled reports whether service relaying is configured
func (s ServiceConfig) Enabled() bool {
	return s.CallSubject != ""
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URLs          []string              `json:"urls" yaml:"urls"`
	Name          string                `json:"name,omitempty" yaml:"name,omitempty"`
	MaxReconnects int                   `json:"max_reconnects,omitempty" yaml:"max_reconnects,omitempty"`
	ReconnectWait time.Duration         `json:"reconnect_wait,omitempty" yaml:"reconnect_wait,omitempty"`
	PingInterval  time.Duration         `json:"ping_interval,omitempty" yaml:"ping_interval,omitempty"`
	DrainTimeout  time.Duration         `json:"drain_timeout,omitempty" yaml:"drain_timeout,omitempty"`
	Username      string                `json:"username,omitempty" yaml:"username,omitempty"`
	Password      string                `json:"password,omitempty" yaml:"password,omitempty"`
	Token         string                `json:"token,omitempty" yaml:"token,omitempty"`
	TLS           *tlsutil.ClientConfig `json:"tls,omitempty" yaml:"tls,omitempty"` // nil leaves TLS to the URL scheme
}

// MetricsConfig controls the /metrics and /health HTTP server
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// PumpConfig sets how often queued messages are delivered
type PumpConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// DefaultConfig returns a configuration that talks to a local gateway and a
// local NATS server
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Name:             "rosbridge",
			Host:             "localhost",
			Port:             9090,
			Scheme:           "ws",
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     5 * time.Second,
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			Name:          "rosbridge-relay",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			PingInterval:  30 * time.Second,
			DrainTimeout:  5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9091,
			Path:    "/metrics",
		},
		Pump: PumpConfig{
			Interval: 10 * time.Millisecond,
		},
		Reconnect: retry.DefaultConfig(),
	}
}

// Validate checks the configuration and fills in the gateway scheme when
// empty. Errors match errors.ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Gateway.Host == "" {
		return invalid("gateway.host is required")
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return invalid("gateway.port %d out of range", c.Gateway.Port)
	}
	if c.Gateway.Scheme == "" {
		c.Gateway.Scheme = "ws"
	}
	if c.Gateway.Scheme != "ws" && c.Gateway.Scheme != "wss" {
		return invalid("gateway.scheme must be ws or wss, got %q", c.Gateway.Scheme)
	}
	if !c.Gateway.TLS.IsZero() && c.Gateway.Scheme != "wss" {
		return invalid("gateway.tls requires scheme wss")
	}
	if err := c.Gateway.TLS.Validate(); err != nil {
		return invalid("gateway.tls: %v", err)
	}

	seen := make(map[string]bool, len(c.Topics))
	for i, b := range c.Topics {
		if err := b.validate(fmt.Sprintf("topics[%d]", i), false); err != nil {
			return err
		}
		if seen[b.Topic] {
			return invalid("topics[%d]: topic %s bound twice", i, b.Topic)
		}
		seen[b.Topic] = true
	}
	for i, b := range c.Publishers {
		if err := b.validate(fmt.Sprintf("publishers[%d]", i), true); err != nil {
			return err
		}
	}

	if c.Services.Enabled() {
		if !isValidSubject(c.Services.CallSubject, true) {
			return invalid("services.call_subject %q is not a valid NATS subject", c.Services.CallSubject)
		}
		if !isValidSubject(c.Services.ResponseSubject, false) {
			return invalid("services.response_subject %q is not a valid NATS subject", c.Services.ResponseSubject)
		}
	} else if c.Services.ResponseSubject != "" {
		return invalid("services.response_subject requires services.call_subject")
	}

	if len(c.NATS.URLs) == 0 {
		return invalid("nats.urls is required")
	}
	for _, u := range c.NATS.URLs {
		if !strings.Contains(u, "://") {
			return invalid("nats url %q has no scheme", u)
		}
	}
	if c.NATS.ReconnectWait < 0 || c.NATS.PingInterval < 0 || c.NATS.DrainTimeout < 0 {
		return invalid("nats durations cannot be negative")
	}
	if c.NATS.TLS != nil {
		if err := c.NATS.TLS.Validate(); err != nil {
			return invalid("nats.tls: %v", err)
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return invalid("metrics.port %d out of range", c.Metrics.Port)
	}
	if c.Pump.Interval <= 0 {
		return invalid("pump.interval must be positive")
	}
	if err := c.Reconnect.Validate(); err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: reconnect: %w", errors.ErrInvalidConfig, err), "Config", "Validate", "check reconnect")
	}
	return nil
}

func (b TopicBinding) validate(field string, wildcards bool) error {
	if !strings.HasPrefix(b.Topic, "/") {
		return invalid("%s.topic %q must start with /", field, b.Topic)
	}
	if b.Type == "" {
		return invalid("%s.type is required for %s", field, b.Topic)
	}
	if !isValidSubject(b.Subject, wildcards) {
		return invalid("%s.subject %q is not a valid NATS subject", field, b.Subject)
	}
	return nil
}

// isValidSubject checks dot-separated NATS subject tokens. Wildcards are only
// accepted for subjects the relay subscribes to.
func isValidSubject(s string, wildcards bool) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	tokens := strings.Split(s, ".")
	for i, tok := range tokens {
		switch {
		case tok == "":
			return false
		case tok == "*" || tok == ">":
			if !wildcards || (tok == ">" && i != len(tokens)-1) {
				return false
			}
		case strings.ContainsAny(tok, "*>"):
			return false
		}
	}
	return true
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, fmt.Sprintf(format, args...)),
		"Config", "Validate", "check field")
}

// String returns the configuration as indented JSON with secrets redacted
func (c *Config) String() string {
	redacted := *c
	if redacted.NATS.Password != "" {
		redacted.NATS.Password = "[REDACTED]"
	}
	if redacted.NATS.Token != "" {
		redacted.NATS.Token = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(redacted, "", "  ")
	return string(data)
}
