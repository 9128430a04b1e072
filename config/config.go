package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-driven setting for the server.
type Config struct {
	Addr        string
	DatabaseURL string
	JWTSecret   string
	SessionTTL  time.Duration

	AllowedOrigins []string

	DefaultRoom   string
	RoomWhitelist []string
	HistoryLimit  int
	MaxMessageLen int

	// Rate gate. Connection attempts and message sends are counted
	// independently so that an active chatter is never throttled out
	// of reconnecting.
	RateWindow    time.Duration
	RateConnLimit int
	RateMsgLimit  int
}

// Load reads configuration from environment variables, falling back to
// defaults suitable for local development. A .env file, if present, is
// loaded by the caller before Load is invoked.
func Load() *Config {
	return &Config{
		Addr:        getEnv("ADDR", ":4040"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		SessionTTL:  getDuration("SESSION_TTL", 14*24*time.Hour),

		AllowedOrigins: getList("ALLOWED_ORIGINS", nil),

		DefaultRoom:   getEnv("DEFAULT_ROOM", "geral"),
		RoomWhitelist: getList("ROOM_WHITELIST", nil),
		HistoryLimit:  getInt("HISTORY_LIMIT", 50),
		MaxMessageLen: getInt("MAX_MESSAGE_LEN", 500),

		RateWindow:    getDuration("RATE_WINDOW", time.Minute),
		RateConnLimit: getInt("RATE_CONN_LIMIT", 5),
		RateMsgLimit:  getInt("RATE_MSG_LIMIT", 30),
	}
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
	if err != nil || n <= 0 {
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
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
