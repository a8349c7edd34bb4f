package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Addr string
	Env  string

	// Database
	DBDriver string // "sqlite3" or "postgres"
	DBSource string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Real-time layer
	HandshakeTimeout time.Duration

	// Pagination
	PageSize int
}

// Load reads configuration from environment variables.
// In development, it loads from a .env file if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Addr:             getEnv("ADDR", ":8080"),
		Env:              getEnv("ENV", "development"),
		DBDriver:         getEnv("DB_DRIVER", "sqlite3"),
		DBSource:         getEnv("DB_SOURCE", "cryptochat.db"),
		JWTSecret:        getEnv("JWT_SECRET", "insecure-dev-secret-change-me"),
		TokenTTL:         getDuration("TOKEN_TTL", 24*time.Hour),
		HandshakeTimeout: getDuration("HANDSHAKE_TIMEOUT", 10*time.Second),
		PageSize:         getInt("PAGE_SIZE", 20),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
