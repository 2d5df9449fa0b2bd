package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	Environment   string
	LogLevel      string
	SessionSecret []byte
	SessionMaxAge int

	DataBackend  string
	DatabasePath string
	DatabaseURL  string

	StorageDir     string
	PublicBaseURL  string
	MaxUploadBytes int64

	DefaultTimezone string

	RedisURL          string
	NATSURL           string
	InviteConcurrency int

	GoogleClientID     string
	GoogleClientSecret string
	RedirectURL        string
	RosterRange        string

	SeedDemo          bool
	DemoAdminPassword string

	QueryCacheTTL time.Duration
	ViewIdleTTL   time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	config := &Config{}

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET environment variable is required")
	}

	if len(sessionSecret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters long")
	}

	config.SessionSecret = []byte(sessionSecret)

	config.Port = getEnvWithDefault("PORT", "8080")
	config.LogLevel = getEnvWithDefault("LOG_LEVEL", "INFO")
	config.Environment = getEnvWithDefault("ENVIRONMENT", "development")

	config.DataBackend = strings.ToLower(getEnvWithDefault("DATA_BACKEND", "sqlite"))
	config.DatabasePath = getEnvWithDefault("DATABASE_PATH", "./dashboard.db")
	config.DatabaseURL = os.Getenv("DB_URL")
	switch config.DataBackend {
	case "sqlite":
	case "postgres":
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DB_URL is required when DATA_BACKEND is postgres")
		}
	default:
		return nil, fmt.Errorf("invalid DATA_BACKEND %q: want sqlite or postgres", config.DataBackend)
	}

	config.StorageDir = getEnvWithDefault("STORAGE_DIR", "./storage")
	config.PublicBaseURL = strings.TrimRight(getEnvWithDefault("PUBLIC_BASE_URL", "http://localhost:"+config.Port), "/")

	config.DefaultTimezone = getEnvWithDefault("DEFAULT_TIMEZONE", "UTC")
	if _, err := time.LoadLocation(config.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE: %v", err)
	}

	config.RedisURL = os.Getenv("REDIS_URL")
	config.NATSURL = os.Getenv("NATS_URL")

	config.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	config.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	config.RedirectURL = getEnvWithDefault("REDIRECT_URL", config.PublicBaseURL+"/auth/callback")
	config.RosterRange = getEnvWithDefault("ROSTER_RANGE", "A:E")

	config.DemoAdminPassword = getEnvWithDefault("DEMO_ADMIN_PASSWORD", "change-me-now")

	var err error
	if config.SessionMaxAge, err = strconv.Atoi(getEnvWithDefault("SESSION_MAX_AGE", "86400")); err != nil {
		return nil, fmt.Errorf("invalid SESSION_MAX_AGE: %v", err)
	}
	if config.MaxUploadBytes, err = strconv.ParseInt(getEnvWithDefault("MAX_UPLOAD_BYTES", "10485760"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %v", err)
	}
	if config.InviteConcurrency, err = strconv.Atoi(getEnvWithDefault("INVITE_CONCURRENCY", "4")); err != nil {
		return nil, fmt.Errorf("invalid INVITE_CONCURRENCY: %v", err)
	}
	if config.SeedDemo, err = strconv.ParseBool(getEnvWithDefault("SEED_DEMO", "false")); err != nil {
		return nil, fmt.Errorf("invalid SEED_DEMO: %v", err)
	}
	if config.QueryCacheTTL, err = time.ParseDuration(getEnvWithDefault("QUERY_CACHE_TTL", "60s")); err != nil {
		return nil, fmt.Errorf("invalid QUERY_CACHE_TTL: %v", err)
	}
	if config.ViewIdleTTL, err = time.ParseDuration(getEnvWithDefault("VIEW_IDLE_TTL", "30m")); err != nil {
		return nil, fmt.Errorf("invalid VIEW_IDLE_TTL: %v", err)
	}

	return config, nil
}

// GoogleEnabled reports whether Google sign-in and roster import are configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Location is the zone used when the browser does not send one.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GenerateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func GenerateCSRFToken() (string, error) {
	return GenerateSecureToken(32)
}
