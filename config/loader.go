package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/semstreams-rosbridge/errors"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "ROSBRIDGE"

// Load reads path over DefaultConfig, applies environment overrides and
// validates the result. An empty path loads defaults and environment only.
// JSON and YAML files are both accepted; YAML is a superset of JSON so one
// decoder reads either.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := safeReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err), "Config", "Load", "read file")
		}
		if ext := strings.ToLower(filepath.Ext(path)); ext == ".json" {
			if err := validateJSONDepth(data); err != nil {
				return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err), "Config", "Load", "check JSON")
			}
		}
		if err := Decode(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges a JSON or YAML document into cfg. Unknown fields are rejected.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err), "Config", "Decode", "parse document")
	}
	return nil
}

// applyEnvOverrides applies ROSBRIDGE_* variables on top of the file
func applyEnvOverrides(cfg *Config) error {
	lookup := func(name string) (string, bool, error) {
		key := EnvPrefix + "_" + name
		val := os.Getenv(key)
		if val == "" {
			return "", false, nil
		}
		if err := validateEnvVar(key, val); err != nil {
			return "", false, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err), "Config", "Load", "read environment")
		}
		return val, true, nil
	}
	atoi := func(name string, dst *int) error {
		val, ok, err := lookup(name)
		if err != nil || !ok {
			return err
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %s_%s=%q is not a number", errors.ErrInvalidConfig, EnvPrefix, name, val),
				"Config", "Load", "read environment")
		}
		*dst = n
		return nil
	}

	if val, ok, err := lookup("HOST"); err != nil {
		return err
	} else if ok {
		cfg.Gateway.Host = val
	}
	if err := atoi("PORT", &cfg.Gateway.Port); err != nil {
		return err
	}
	if val, ok, err := lookup("SCHEME"); err != nil {
		return err
	} else if ok {
		cfg.Gateway.Scheme = val
	}
	if val, ok, err := lookup("NATS_URLS"); err != nil {
		return err
	} else if ok {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	if val, ok, err := lookup("NATS_TOKEN"); err != nil {
		return err
	} else if ok {
		cfg.NATS.Token = val
	}
	return atoi("METRICS_PORT", &cfg.Metrics.Port)
}
