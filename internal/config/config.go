package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
// We use a struct (not globals) so it's testable and explicit.
type Config struct {
	// Server
	ServerAddr string
	Env        string // "development" or "production"

	// CORS / websocket origin policy
	AllowedOrigins []string

	// Database (read-only view of the main app's users/friends; optional)
	DatabaseURL string

	// Redis (for PubSub when collaborating services run out of process)
	RedisURL   string // e.g., "redis://localhost:6379"
	PubSubType string // "memory" or "redis"

	// Per-connection inbound event limits
	EventsPerSec    float64
	EventBurst      int
	MaxMessageBytes int64
}

// Load reads configuration from environment variables.
// In production, these come from the host. In dev, from .env via docker-compose.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr:     getEnvOrDefault("SERVER_ADDR", "0.0.0.0:8001"),
		Env:            getEnvOrDefault("APP_ENV", "development"),
		AllowedOrigins: splitEnv("ALLOWED_ORIGINS", ""),
	}

	// DATABASE_URL is optional: the relay serves presence without it, the
	// friend-lookup REST endpoints just answer 503.
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	// Redis / PubSub configuration
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.PubSubType = getEnvOrDefault("PUBSUB_TYPE", "memory") // "memory" or "redis"

	cfg.EventsPerSec = getEnvFloat("WS_EVENTS_PER_SEC", 20)
	cfg.EventBurst = getEnvInt("WS_EVENT_BURST", 40)
	cfg.MaxMessageBytes = int64(getEnvInt("MAX_MESSAGE_BYTES", 65536))

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f <= 0 {
		return defaultVal
	}
	return f
}

// splitEnv splits a comma-separated env var into a slice
func splitEnv(key, defaultVal string) []string {
	val := os.Getenv(key)
	if val == "" {
		val = defaultVal
	}
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
