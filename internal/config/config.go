package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string

	RateLimitPerMinute          int
	RateLimitBurst              int
	PrincipalRateLimitPerMinute int
	PrincipalRateLimitBurst     int

	AuthRequired bool

	// Alert service.
	DefaultRadiusMeters  float64
	DefaultEmergencyTTL  time.Duration
	ExpirySweepInterval  time.Duration
	LocationStaleWindow  time.Duration
	StaleSweepInterval   time.Duration
	ClientSendBufferSize int
}

func Load() Config {
	// A missing .env is the normal case outside local dev.
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:        port,
		DatabaseURL: os.Getenv("DB_DSN"),

		RateLimitPerMinute:          readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:              readInt("RATE_LIMIT_BURST", 30),
		PrincipalRateLimitPerMinute: readInt("PRINCIPAL_RATE_LIMIT_PER_MIN", 600),
		PrincipalRateLimitBurst:     readInt("PRINCIPAL_RATE_LIMIT_BURST", 120),

		AuthRequired: readBool("AUTH_REQUIRED", false),

		DefaultRadiusMeters:  float64(readInt("DEFAULT_RADIUS_METERS", 1000)),
		DefaultEmergencyTTL:  readDurationSeconds("EMERGENCY_TTL_SECONDS", 24*60*60),
		ExpirySweepInterval:  readDurationSeconds("EXPIRY_SWEEP_INTERVAL_SECONDS", 30),
		LocationStaleWindow:  readDurationSeconds("LOCATION_STALE_SECONDS", 900),
		StaleSweepInterval:   readDurationSeconds("STALE_SWEEP_INTERVAL_SECONDS", 60),
		ClientSendBufferSize: readInt("CLIENT_SEND_BUFFER", 16),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
