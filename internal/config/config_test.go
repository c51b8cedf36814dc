package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Load()
	cfg.Auth.JWTSecret = []byte("test-secret")
	return cfg
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := Load()
		assert.Equal(t, 8080, cfg.HTTP.Port)
		assert.Equal(t, 45*time.Second, cfg.Room.ReconnectGrace)
		assert.Equal(t, 5*time.Minute, cfg.Room.IdleTimeout)
		assert.Equal(t, 500, cfg.Chat.Retention)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("LIVECLASS_PORT", "9000")
		t.Setenv("LIVECLASS_RECONNECT_GRACE", "10s")
		cfg := Load()
		assert.Equal(t, 9000, cfg.HTTP.Port)
		assert.Equal(t, 10*time.Second, cfg.Room.ReconnectGrace)
	})

	t.Run("malformed values fall back to defaults", func(t *testing.T) {
		t.Setenv("LIVECLASS_PORT", "not-a-port")
		t.Setenv("LIVECLASS_SWEEP_INTERVAL", "whenever")
		cfg := Load()
		assert.Equal(t, 8080, cfg.HTTP.Port)
		assert.Equal(t, 30*time.Second, cfg.Room.SweepInterval)
	})
}

func TestValidate(t *testing.T) {
	t.Run("accepts defaults plus a secret", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("requires a JWT secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.Auth.JWTSecret = nil
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects out-of-range port", func(t *testing.T) {
		cfg := validConfig()
		cfg.HTTP.Port = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects read timeout below ping interval", func(t *testing.T) {
		cfg := validConfig()
		cfg.WebSocket.ReadTimeout = cfg.WebSocket.PingInterval / 2
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non-positive grace window", func(t *testing.T) {
		cfg := validConfig()
		cfg.Room.ReconnectGrace = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non-positive chat limits", func(t *testing.T) {
		cfg := validConfig()
		cfg.Chat.Retention = 0
		assert.Error(t, cfg.Validate())
	})
}
