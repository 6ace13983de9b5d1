// Package config loads and validates the service and engine configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate when fields are unset.
const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8282
	defaultInputSampleRate  = 16000
	defaultOutputSampleRate = 24000
	defaultOutputFrameSize  = 480
	defaultFrameRate        = 30
	defaultChannelLayout    = "mono"
	defaultConnectionTTL    = 900
	defaultConcurrentLimit  = 10
)

// ServiceConfig configures the HTTP service that hosts the engine.
type ServiceConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// CertFile/KeyFile enable TLS when both are set.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Validate applies defaults and checks the service configuration.
func (c *ServiceConfig) Validate() error {
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("cert_file and key_file must be set together")
	}
	return nil
}

// ConnectionConfig holds the transport setup parameters for client sessions.
type ConnectionConfig struct {
	// InputSampleRate is the sample rate expected from the client, in Hz.
	InputSampleRate int `yaml:"input_sample_rate"`

	// OutputSampleRate is the sample rate produced for the client, in Hz.
	OutputSampleRate int `yaml:"output_sample_rate"`

	// OutputFrameSize is the number of samples per outbound audio frame.
	OutputFrameSize int `yaml:"output_frame_size"`

	// FrameRate is the target video frame rate in FPS.
	FrameRate int `yaml:"frame_rate"`

	// ChannelLayout is the expected audio layout. Only "mono" is supported.
	ChannelLayout string `yaml:"channel_layout"`

	// ConnectionTTLSeconds bounds the lifetime of one client connection.
	ConnectionTTLSeconds int `yaml:"connection_ttl"`

	// ConcurrentLimit caps the number of simultaneously active sessions.
	ConcurrentLimit int `yaml:"concurrent_limit"`
}

// TTL returns the connection time-to-live as a duration.
func (c *ConnectionConfig) TTL() time.Duration {
	return time.Duration(c.ConnectionTTLSeconds) * time.Second
}

// Validate applies defaults and checks the connection parameters.
func (c *ConnectionConfig) Validate() error {
	if c.InputSampleRate == 0 {
		c.InputSampleRate = defaultInputSampleRate
	}
	if c.OutputSampleRate == 0 {
		c.OutputSampleRate = defaultOutputSampleRate
	}
	if c.OutputFrameSize == 0 {
		c.OutputFrameSize = defaultOutputFrameSize
	}
	if c.FrameRate == 0 {
		c.FrameRate = defaultFrameRate
	}
	if c.ChannelLayout == "" {
		c.ChannelLayout = defaultChannelLayout
	}
	if c.ConnectionTTLSeconds == 0 {
		c.ConnectionTTLSeconds = defaultConnectionTTL
	}
	if c.ConcurrentLimit == 0 {
		c.ConcurrentLimit = defaultConcurrentLimit
	}
	if c.InputSampleRate < 0 || c.OutputSampleRate < 0 {
		return fmt.Errorf("sample rates must be positive")
	}
	if c.ChannelLayout != "mono" {
		return fmt.Errorf("unsupported channel layout: %s", c.ChannelLayout)
	}
	if c.ConnectionTTLSeconds < 0 {
		return fmt.Errorf("connection_ttl must be non-negative")
	}
	if c.ConcurrentLimit < 0 {
		return fmt.Errorf("concurrent_limit must be non-negative")
	}
	return nil
}

// HandlerConfig is the raw configuration mapping for one handler. Handlers
// validate it against the JSON schema they declare in their handler info.
type HandlerConfig map[string]interface{}

// GetString returns a string-valued field, or def when absent or untyped.
func (c HandlerConfig) GetString(key, def string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return def
}

// GetInt returns an integer-valued field, or def when absent or untyped.
// YAML decodes numbers as int; JSON round-trips land as float64.
func (c HandlerConfig) GetInt(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// GetBool returns a boolean-valued field, or def when absent or untyped.
func (c HandlerConfig) GetBool(key string, def bool) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return def
}

// GetMap returns a nested mapping field, or nil when absent or untyped.
func (c HandlerConfig) GetMap(key string) map[string]interface{} {
	if v, ok := c[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

// HandlerEntry names one handler and carries its raw configuration. Entries
// keep their declaration order; the engine loads handlers in this order.
type HandlerEntry struct {
	Name   string        `yaml:"name"`
	Config HandlerConfig `yaml:"config"`
}

// EngineConfig configures the chat engine: connection parameters, the
// handler chain, and the raw relay (TURN/STUN) configuration mapping.
type EngineConfig struct {
	Connection ConnectionConfig `yaml:"connection"`

	// Handlers lists the handler chain in load order.
	Handlers []HandlerEntry `yaml:"handlers"`

	// TurnConfig is the raw relay configuration mapping handed to relay
	// negotiation. A nil map means "no relay".
	TurnConfig map[string]interface{} `yaml:"turn_config"`
}

// Validate applies defaults and checks the engine configuration.
func (c *EngineConfig) Validate() error {
	if err := c.Connection.Validate(); err != nil {
		return fmt.Errorf("connection: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Handlers))
	for _, h := range c.Handlers {
		if h.Name == "" {
			return fmt.Errorf("handler entry with empty name")
		}
		if _, dup := seen[h.Name]; dup {
			return fmt.Errorf("duplicate handler entry: %s", h.Name)
		}
		seen[h.Name] = struct{}{}
	}
	return nil
}

// Config is the root configuration document.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Engine  EngineConfig  `yaml:"engine"`
}

// Validate applies defaults and checks the whole document.
func (c *Config) Validate() error {
	if err := c.Service.Validate(); err != nil {
		return fmt.Errorf("service: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// Load reads, parses and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse parses and validates YAML configuration bytes.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
