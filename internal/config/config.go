package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Config represents the main ssegate configuration
type Config struct {
	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Cross-origin access
	CORS CORSConfig `json:"cors" mapstructure:"cors"`

	// Authentication
	Auth AuthConfig `json:"auth" mapstructure:"auth"`

	// Per-session command admission
	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Protocol engine identity
	Engine EngineConfig `json:"engine" mapstructure:"engine"`

	// Span sampling
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// ServerConfig holds HTTP and push-stream settings
type ServerConfig struct {
	Host                   string `json:"host" mapstructure:"host"`
	Port                   int    `json:"port" mapstructure:"port"`
	StreamPath             string `json:"stream_path" mapstructure:"stream_path"`
	MessagePath            string `json:"message_path" mapstructure:"message_path"`
	MaxBodyBytes           int64  `json:"max_body_bytes" mapstructure:"max_body_bytes"`
	KeepAliveSeconds       int    `json:"keepalive_seconds" mapstructure:"keepalive_seconds"` // 0 disables
	SendQueueLimit         int    `json:"send_queue_limit" mapstructure:"send_queue_limit"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// KeepAlive returns the keepalive interval
func (s ServerConfig) KeepAlive() time.Duration {
	return time.Duration(s.KeepAliveSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown budget
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" mapstructure:"allowed_headers"`
	MaxAgeSeconds  int      `json:"max_age_seconds" mapstructure:"max_age_seconds"`
}

// AuthConfig holds bearer token settings. An empty token disables auth.
type AuthConfig struct {
	Token string `json:"token" mapstructure:"token"`
}

// RateLimitConfig holds per-session command limits. Zero disables a limit.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" mapstructure:"requests_per_minute"`
	MaxConcurrent     int `json:"max_concurrent" mapstructure:"max_concurrent"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	File       string `json:"file" mapstructure:"file"`
	Pretty     bool   `json:"pretty" mapstructure:"pretty"`
	Redaction  bool   `json:"redaction" mapstructure:"redaction"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"` // 0 disables rotation
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
}

// EngineConfig names the server to connecting clients
type EngineConfig struct {
	Name    string `json:"name" mapstructure:"name"`
	Version string `json:"version" mapstructure:"version"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   3000,
			StreamPath:             "/sse",
			MessagePath:            "/messages",
			MaxBodyBytes:           4 << 20,
			KeepAliveSeconds:       15,
			SendQueueLimit:         256,
			ShutdownTimeoutSeconds: 10,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "Mcp-Session-Id"},
			MaxAgeSeconds:  300,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 600,
			MaxConcurrent:     32,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Pretty:     true,
			Redaction:  true,
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
		Engine: EngineConfig{
			Name:    "ssegate",
			Version: "0.1.0",
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
	}
}

// String returns the config as indented JSON with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.Auth.Token != "" {
		masked.Auth.Token = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate reports every configuration problem found
func (c *Config) Validate() error {
	if errs := NewValidator().ValidateConfig(c); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}
