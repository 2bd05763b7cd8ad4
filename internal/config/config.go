package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported storage drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Environment    string
	AppSecret      string

	DatabaseDriver string
	DatabaseURL    string
	SQLitePath     string
	DBMaxConns     int
	RedisURL       string // optional; one-time tokens stay in memory without it

	OTTTTL            time.Duration
	OTTSweepInterval  time.Duration
	PollRetention     time.Duration
	PollSweepInterval time.Duration

	LoginRatePerMinute int
	LoginRateBurst     int
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Only enable behind a proxy that overwrites them.
	TrustProxyHeaders  bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:5174")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Environment:    getEnv("ENVIRONMENT", "production"),
		AppSecret:      getEnv("APP_SECRET", ""),

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", DriverSQLite)),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "data/polls.db"),
		DBMaxConns:     getIntEnv("DB_MAX_CONNS", 10),
		RedisURL:       getEnv("REDIS_URL", ""),

		OTTTTL:            getDurationEnv("OTT_TTL", time.Hour),
		OTTSweepInterval:  getDurationEnv("OTT_SWEEP_INTERVAL", time.Hour),
		PollRetention:     getDurationEnv("POLL_RETENTION", 210*24*time.Hour),
		PollSweepInterval: getDurationEnv("POLL_SWEEP_INTERVAL", 24*time.Hour),

		LoginRatePerMinute: getIntEnv("LOGIN_RATE_PER_MINUTE", 10),
		LoginRateBurst:     getIntEnv("LOGIN_RATE_BURST", 5),
		TrustProxyHeaders:  getBoolEnv("TRUST_PROXY_HEADERS", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing or inconsistent settings
func (c *Config) Validate() error {
	var missing []string
	if c.AppSecret == "" {
		missing = append(missing, "APP_SECRET")
	}
	if c.DatabaseDriver == DriverPostgres && c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}

	if c.OTTTTL <= 0 || c.OTTSweepInterval <= 0 || c.PollRetention <= 0 || c.PollSweepInterval <= 0 {
		return fmt.Errorf("durations must be positive")
	}
	if c.LoginRatePerMinute <= 0 || c.LoginRateBurst <= 0 {
		return fmt.Errorf("login rate settings must be positive")
	}
	return nil
}

// IsDevelopment reports whether the service runs outside production
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "test"
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable such as "90m" with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
