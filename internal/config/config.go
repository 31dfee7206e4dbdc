// Package config loads runtime settings for the API and worker processes from env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pawmatch/pawmatch/internal/telemetry"
)

// Config holds runtime settings loaded from env vars.
type Config struct {
	Environment string

	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Telemetry telemetry.Config
	Logging   telemetry.LogConfig
	Scoring   ScoringConfig
	Matching  MatchingConfig
	Telegram  TelegramConfig
	Email     EmailConfig
	Maps      MapsConfig
	Worker    WorkerConfig
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// Per-user message sends allowed per MessageRateWindow
	MessageRateLimit  int
	MessageRateWindow time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Store selects "postgres" or "memory"
	Store string
}

type RedisConfig struct {
	URL         string
	Enabled     bool
	PairLockTTL time.Duration
	SnapshotTTL time.Duration
}

// ScoringConfig tunes the compatibility weights and thresholds.
type ScoringConfig struct {
	MatchThreshold     float64
	PriorityMultiplier float64
	PrioritizeBreed    bool
	PrioritizeEnergy   bool
}

type MatchingConfig struct {
	Expiry time.Duration
}

type TelegramConfig struct {
	BotToken string
}

type EmailConfig struct {
	SendGridAPIKey string
	FromAddress    string
	FromName       string
}

type MapsConfig struct {
	APIKey string
}

type WorkerConfig struct {
	Concurrency       int
	ExpirySchedule    string
	ReconcileSchedule string
	ReconcileLookback time.Duration
	ExpirySweepBatch  int
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Environment: envOr("ENVIRONMENT", "development"),
		HTTP: HTTPConfig{
			Addr:              envOr("HTTP_ADDR", ":8080"),
			ReadTimeout:       envDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      envDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout:   envDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
			MessageRateLimit:  envInt("MESSAGE_RATE_LIMIT", 30),
			MessageRateWindow: envDuration("MESSAGE_RATE_WINDOW", time.Minute),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Store:           envOr("STORE", "postgres"),
		},
		Redis: RedisConfig{
			URL:         envOr("REDIS_URL", "redis://localhost:6379/0"),
			Enabled:     envBool("REDIS_ENABLED", true),
			PairLockTTL: envDuration("PAIR_LOCK_TTL", 5*time.Second),
			SnapshotTTL: envDuration("NEGOTIATION_SNAPSHOT_TTL", 30*time.Minute),
		},
		Telemetry: telemetry.Config{
			ServiceName:    envOr("OTEL_SERVICE_NAME", "pawmatch"),
			ServiceVersion: envOr("OTEL_SERVICE_VERSION", "1.0.0"),
			Environment:    envOr("ENVIRONMENT", "development"),
			OTLPEndpoint:   envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			Enabled:        envBool("OTEL_ENABLED", false),
			MetricInterval: envDuration("OTEL_METRIC_INTERVAL", 30*time.Second),
		},
		Logging: telemetry.LogConfig{
			Level:      envOr("LOG_LEVEL", "info"),
			Format:     envOr("LOG_FORMAT", "json"),
			Output:     envOr("LOG_OUTPUT", "stdout"),
			Rotation:   envBool("LOG_ROTATION", false),
			MaxSize:    envInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 3),
			MaxAge:     envInt("LOG_MAX_AGE_DAYS", 28),
			Compress:   envBool("LOG_COMPRESS", true),
		},
		Scoring: ScoringConfig{
			MatchThreshold:     envFloat("MATCH_THRESHOLD", 0.7),
			PriorityMultiplier: envFloat("SCORING_PRIORITY_MULTIPLIER", 2.0),
			PrioritizeBreed:    envBool("SCORING_PRIORITIZE_BREED", false),
			PrioritizeEnergy:   envBool("SCORING_PRIORITIZE_ENERGY", false),
		},
		Matching: MatchingConfig{
			Expiry: envDuration("MATCH_EXPIRY", 7*24*time.Hour),
		},
		Telegram: TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		},
		Email: EmailConfig{
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			FromAddress:    envOr("EMAIL_FROM_ADDRESS", "matches@pawmatch.app"),
			FromName:       envOr("EMAIL_FROM_NAME", "PawMatch"),
		},
		Maps: MapsConfig{
			APIKey: os.Getenv("GOOGLE_MAPS_API_KEY"),
		},
		Worker: WorkerConfig{
			Concurrency:       envInt("WORKER_CONCURRENCY", 10),
			ExpirySchedule:    envOr("EXPIRY_SWEEP_SCHEDULE", "*/15 * * * *"),
			ReconcileSchedule: envOr("SWIPE_RECONCILE_SCHEDULE", "0 * * * *"),
			ReconcileLookback: envDuration("SWIPE_RECONCILE_LOOKBACK", 24*time.Hour),
			ExpirySweepBatch:  envInt("EXPIRY_SWEEP_BATCH", 500),
		},
	}
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	switch c.Database.Store {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE must be postgres or memory, got %q", c.Database.Store)
	}
	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required when REDIS_ENABLED=true")
	}
	if c.Scoring.MatchThreshold < 0 || c.Scoring.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be within [0,1], got %v", c.Scoring.MatchThreshold)
	}
	if c.Scoring.PriorityMultiplier < 1 {
		return fmt.Errorf("SCORING_PRIORITY_MULTIPLIER must be >= 1, got %v", c.Scoring.PriorityMultiplier)
	}
	if c.Matching.Expiry <= 0 {
		return fmt.Errorf("MATCH_EXPIRY must be positive")
	}
	if c.HTTP.MessageRateLimit <= 0 {
		return fmt.Errorf("MESSAGE_RATE_LIMIT must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
