// Package config loads sanic-go's YAML configuration file, grounded on
// gorouter/config's Config/DefaultConfig/Process/InitConfigFromFile
// pattern but scoped to the knobs spec.md §1 reads from the original's
// app.config: request/response/keep-alive timeouts, request_max_size, the
// backlog queue size, the access-log toggle, and graceful-shutdown
// timing, plus the ambient listen/worker/log knobs a standalone binary
// needs that the original left to its embedding application.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v2"
)

// LoggingConfig controls the zap-backed logger (SPEC_FULL.md §10.1).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is sanic-go's full configuration surface.
type Config struct {
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`

	// Workers is how many listener processes share the bound socket
	// (spec.md §4.3); 0 or less means runtime.NumCPU(), matching the
	// original's `workers` setting defaulting to CPU count.
	Workers int `yaml:"workers"`

	EnablePROXYProtocol bool `yaml:"enable_proxy_protocol"`

	RequestTimeout   time.Duration `yaml:"request_timeout"`
	ResponseTimeout  time.Duration `yaml:"response_timeout"`
	KeepAliveTimeout time.Duration `yaml:"keep_alive_timeout"`

	RequestMaxSize         int64 `yaml:"request_max_size"`
	RequestBufferQueueSize int   `yaml:"request_buffer_queue_size"`

	AccessLog bool `yaml:"access_log"`

	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// StatsdAddress, if set, enables metrics emission (SPEC_FULL.md §11).
	StatsdAddress string `yaml:"statsd_address"`
	StatsdPrefix  string `yaml:"statsd_prefix"`

	Logging LoggingConfig `yaml:"logging"`
}

var defaultConfig = Config{
	Host: "0.0.0.0",
	Port: 8000,

	Workers: -1,

	RequestTimeout:   60 * time.Second,
	ResponseTimeout:  60 * time.Second,
	KeepAliveTimeout: 5 * time.Second,

	RequestMaxSize:         100 * 1024 * 1024,
	RequestBufferQueueSize: 100,

	AccessLog: true,

	GracefulShutdownTimeout: 15 * time.Second,

	StatsdPrefix: "sanic",

	Logging: LoggingConfig{Level: "info", Format: "json"},
}

// DefaultConfig returns a copy of the built-in defaults.
func DefaultConfig() (*Config, error) {
	c := defaultConfig
	return &c, nil
}

// Initialize unmarshals configYAML onto c, leaving fields it doesn't
// mention at their current (default) value.
func (c *Config) Initialize(configYAML []byte) error {
	return yaml.Unmarshal(configYAML, c)
}

// Process fills in derived defaults and validates the result. Call it
// once after Initialize.
func (c *Config) Process() error {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.RequestMaxSize <= 0 {
		return fmt.Errorf("config: request_max_size must be positive")
	}
	if c.RequestBufferQueueSize <= 0 {
		c.RequestBufferQueueSize = defaultConfig.RequestBufferQueueSize
	}
	if c.Port == 0 {
		return fmt.Errorf("config: port must be set")
	}
	return nil
}

// InitConfigFromFile loads defaults, overlays path's YAML, and Processes
// the result.
func InitConfigFromFile(path string) (*Config, error) {
	c, err := DefaultConfig()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := c.Initialize(b); err != nil {
		return nil, err
	}

	if err := c.Process(); err != nil {
		return nil, err
	}

	return c, nil
}
