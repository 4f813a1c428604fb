// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load consults when no path is
// given.
const EnvironmentVariable = "SPANSTREAM_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the span streamer's configuration.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Collector configures the upstream trace collector.
	Collector CollectorConfig `yaml:"collector"`

	// Buffer configures the span queue between producers and the stream.
	Buffer BufferConfig `yaml:"buffer"`

	// Ingest configures the local socket producers write spans to.
	Ingest IngestConfig `yaml:"ingest"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
// Zero values leave the base setting untouched.
type ConfigOverrides struct {
	Collector *CollectorOverrides `yaml:"collector,omitempty"`
	Buffer    *BufferConfig       `yaml:"buffer,omitempty"`
	Ingest    *IngestConfig       `yaml:"ingest,omitempty"`
	Metrics   *MetricsConfig      `yaml:"metrics,omitempty"`
	Log       *LogConfig          `yaml:"log,omitempty"`
}

// CollectorConfig configures the collector connection.
type CollectorConfig struct {
	// Address is the gRPC target of the collector.
	// Default: 127.0.0.1:9443
	Address string `yaml:"address"`

	// Compression selects the stream compressor: "" for none, or "zstd".
	// Default: zstd
	Compression string `yaml:"compression"`

	// Insecure disables TLS.
	// Default: true (development), false (production)
	Insecure bool `yaml:"insecure"`

	// ReconnectDelay is the fixed wait after a stream fails.
	// Default: 15s
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// CollectorOverrides mirrors CollectorConfig with Insecure as a
// pointer so an override can turn it off.
type CollectorOverrides struct {
	Address        string        `yaml:"address,omitempty"`
	Compression    string        `yaml:"compression,omitempty"`
	Insecure       *bool         `yaml:"insecure,omitempty"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay,omitempty"`
}

// BufferConfig configures the span buffer.
type BufferConfig struct {
	// Capacity is the maximum number of queued spans. When full, the
	// oldest span is evicted.
	// Default: 10000
	Capacity int `yaml:"capacity"`

	// HarvestInterval is how often the seen/dropped counters are read
	// into metrics.
	// Default: 10s
	HarvestInterval time.Duration `yaml:"harvest_interval"`
}

// IngestConfig configures the producer socket.
type IngestConfig struct {
	// SocketPath is the Unix socket producers write CBOR spans to.
	// ${HOME} and ${VAR:-default} are expanded.
	// Default: /run/bureau/spanstream.sock
	SocketPath string `yaml:"socket_path"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// ListenAddress is the TCP address serving /metrics. Empty
	// disables the endpoint.
	// Default: 127.0.0.1:9464
	ListenAddress string `yaml:"listen_address"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	return &Config{
		Environment: Development,
		Collector: CollectorConfig{
			Address:        "127.0.0.1:9443",
			Compression:    "zstd",
			Insecure:       true,
			ReconnectDelay: 15 * time.Second,
		},
		Buffer: BufferConfig{
			Capacity:        10000,
			HarvestInterval: 10 * time.Second,
		},
		Ingest: IngestConfig{
			SocketPath: "/run/bureau/spanstream.sock",
		},
		Metrics: MetricsConfig{
			ListenAddress: "127.0.0.1:9464",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from path, or from the file named by
// SPANSTREAM_CONFIG when path is empty. There is no discovery: if
// neither is set, Load fails.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvironmentVariable)
	}
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your spanstream.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, applies the
// section for the configured environment, and expands variables in
// paths. It does not validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.Ingest.SocketPath = expandVars(cfg.Ingest.SocketPath)

	return cfg, nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: TLS to the collector.
		if overrides == nil {
			secure := false
			overrides = &ConfigOverrides{
				Collector: &CollectorOverrides{Insecure: &secure},
			}
		}
	}

	if overrides == nil {
		return
	}

	if collector := overrides.Collector; collector != nil {
		if collector.Address != "" {
			c.Collector.Address = collector.Address
		}
		if collector.Compression != "" {
			c.Collector.Compression = collector.Compression
		}
		if collector.Insecure != nil {
			c.Collector.Insecure = *collector.Insecure
		}
		if collector.ReconnectDelay != 0 {
			c.Collector.ReconnectDelay = collector.ReconnectDelay
		}
	}

	if buffer := overrides.Buffer; buffer != nil {
		if buffer.Capacity != 0 {
			c.Buffer.Capacity = buffer.Capacity
		}
		if buffer.HarvestInterval != 0 {
			c.Buffer.HarvestInterval = buffer.HarvestInterval
		}
	}

	if overrides.Ingest != nil && overrides.Ingest.SocketPath != "" {
		c.Ingest.SocketPath = overrides.Ingest.SocketPath
	}
	if overrides.Metrics != nil && overrides.Metrics.ListenAddress != "" {
		c.Metrics.ListenAddress = overrides.Metrics.ListenAddress
	}
	if overrides.Log != nil && overrides.Log.Level != "" {
		c.Log.Level = overrides.Log.Level
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns from the
// process environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]Environment{Development, Staging, Production}, c.Environment) {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Collector.Address == "" {
		errs = append(errs, errors.New("collector.address is required"))
	}
	if c.Collector.Compression != "" && c.Collector.Compression != "zstd" {
		errs = append(errs, fmt.Errorf("collector.compression must be empty or zstd, got %q", c.Collector.Compression))
	}
	if c.Collector.ReconnectDelay < 0 {
		errs = append(errs, fmt.Errorf("collector.reconnect_delay must not be negative, got %v", c.Collector.ReconnectDelay))
	}

	if c.Buffer.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("buffer.capacity must be positive, got %d", c.Buffer.Capacity))
	}
	if c.Buffer.HarvestInterval <= 0 {
		errs = append(errs, fmt.Errorf("buffer.harvest_interval must be positive, got %v", c.Buffer.HarvestInterval))
	}

	if c.Ingest.SocketPath == "" {
		errs = append(errs, errors.New("ingest.socket_path is required"))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
