package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/sse", cfg.Server.StreamPath)
	assert.Equal(t, "/messages", cfg.Server.MessagePath)
	assert.Equal(t, int64(4<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, []string{"GET", "POST", "OPTIONS"}, cfg.CORS.AllowedMethods)
	assert.Contains(t, cfg.CORS.AllowedHeaders, "Mcp-Session-Id")
	assert.Empty(t, cfg.Auth.Token)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "ssegate", cfg.Engine.Name)
	assert.NoError(t, cfg.Validate())
}

func TestServerConfigDerivedValues(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8080, KeepAliveSeconds: 15, ShutdownTimeoutSeconds: 3}

	assert.Equal(t, "127.0.0.1:8080", s.Addr())
	assert.Equal(t, 15*time.Second, s.KeepAlive())
	assert.Equal(t, 3*time.Second, s.ShutdownTimeout())

	s.KeepAliveSeconds = 0
	assert.Equal(t, time.Duration(0), s.KeepAlive())
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("invalid port", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.Port = 70000

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "port must be between")
	})

	t.Run("same stream and message path", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.MessagePath = cfg.Server.StreamPath

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must differ")
	})

	t.Run("reports every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.Port = 0
		cfg.Logging.Level = "verbose"

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "port")
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestConfigStringMasksToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.Token = "super-secret"

	out := cfg.String()
	assert.NotContains(t, out, "super-secret")
	assert.Contains(t, out, "[REDACTED]")
	assert.Equal(t, "super-secret", cfg.Auth.Token, "original config must be untouched")
}
