package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"liveclass/pkg/logger"
)

// Config carries every tunable of the coordinator. Values come from the
// environment (a .env file is honored if present) with defaults suitable for
// a single-process classroom deployment.
type Config struct {
	HTTP      HTTPConfig
	WebSocket WebSocketConfig
	Room      RoomConfig
	Chat      ChatConfig
	Archive   ArchiveConfig
	Auth      AuthConfig
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type WebSocketConfig struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

type RoomConfig struct {
	ReconnectGrace  time.Duration
	IdleTimeout     time.Duration
	SweepInterval   time.Duration
	MaxParticipants int
}

type ChatConfig struct {
	MaxBodyLength int
	Retention     int
	RatePerMinute int
}

type ArchiveConfig struct {
	Path    string // empty disables the archive
	Timeout time.Duration
}

type AuthConfig struct {
	JWTSecret []byte
}

// Load reads configuration from the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded: %v", err)
	}

	return &Config{
		HTTP: HTTPConfig{
			Host:         getEnv("LIVECLASS_HOST", "0.0.0.0"),
			Port:         getInt("LIVECLASS_PORT", 8080),
			ReadTimeout:  getDuration("LIVECLASS_HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("LIVECLASS_HTTP_WRITE_TIMEOUT", 30*time.Second),
		},
		WebSocket: WebSocketConfig{
			PingInterval: getDuration("LIVECLASS_WS_PING_INTERVAL", 30*time.Second),
			ReadTimeout:  getDuration("LIVECLASS_WS_READ_TIMEOUT", 60*time.Second),
			WriteTimeout: getDuration("LIVECLASS_WS_WRITE_TIMEOUT", 10*time.Second),
			SendBuffer:   getInt("LIVECLASS_WS_SEND_BUFFER", 128),
		},
		Room: RoomConfig{
			ReconnectGrace:  getDuration("LIVECLASS_RECONNECT_GRACE", 45*time.Second),
			IdleTimeout:     getDuration("LIVECLASS_ROOM_IDLE_TIMEOUT", 5*time.Minute),
			SweepInterval:   getDuration("LIVECLASS_SWEEP_INTERVAL", 30*time.Second),
			MaxParticipants: getInt("LIVECLASS_MAX_PARTICIPANTS", 200),
		},
		Chat: ChatConfig{
			MaxBodyLength: getInt("LIVECLASS_CHAT_MAX_BODY", 2000),
			Retention:     getInt("LIVECLASS_CHAT_RETENTION", 500),
			RatePerMinute: getInt("LIVECLASS_CHAT_RATE_PER_MINUTE", 60),
		},
		Archive: ArchiveConfig{
			Path:    getEnv("LIVECLASS_ARCHIVE_PATH", "./liveclass.db"),
			Timeout: getDuration("LIVECLASS_ARCHIVE_TIMEOUT", 30*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: []byte(getEnv("LIVECLASS_JWT_SECRET", "")),
		},
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket timeouts must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket read timeout must exceed ping interval")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket send buffer must be positive")
	}
	if c.Room.ReconnectGrace <= 0 {
		return fmt.Errorf("reconnect grace must be positive")
	}
	if c.Room.IdleTimeout <= 0 || c.Room.SweepInterval <= 0 {
		return fmt.Errorf("room idle timeout and sweep interval must be positive")
	}
	if c.Room.MaxParticipants <= 0 {
		return fmt.Errorf("max participants must be positive")
	}
	if c.Chat.MaxBodyLength <= 0 || c.Chat.Retention <= 0 || c.Chat.RatePerMinute <= 0 {
		return fmt.Errorf("chat limits must be positive")
	}
	if len(c.Auth.JWTSecret) == 0 {
		return fmt.Errorf("LIVECLASS_JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Error("invalid integer for %s: %v, using default %d", key, err, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Error("invalid duration for %s: %v, using default %s", key, err, fallback)
		return fallback
	}
	return d
}
