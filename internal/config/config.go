// Package config loads and validates all environment variables at startup.
// Every other package receives typed values — nothing reads os.Getenv directly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the fully-parsed application configuration.
type Config struct {
	// ── Server ────────────────────────────────────────────────────────────────
	Port              string        // default "8080"; HTTP and gRPC share it
	Env               string        // "development" | "staging" | "production"
	RequestTimeout    time.Duration // default 15s
	CORSAllowedOrigin string        // default "*"

	// ── Engine ────────────────────────────────────────────────────────────────
	LexiconPath  string // optional YAML override; empty uses the embedded lexicon
	ResponseSeed uint64 // 0 means unseeded

	// ── Database ──────────────────────────────────────────────────────────────
	// Optional outside production. When empty the escalation ledger is kept in
	// memory and lost on restart.
	DatabaseURL string

	// ── Redis ─────────────────────────────────────────────────────────────────
	// Optional. When empty, escalations are de-duplicated per process.
	RedisAddr              string
	EscalationDedupeWindow time.Duration // default 15m

	// ── Resend ────────────────────────────────────────────────────────────────
	// Optional. Without an API key, crisis alerts are written to the log.
	ResendAPIKey  string
	AlertEmailTo  string // supervisor inbox for crisis alerts
	EmailFromAddr string
	EmailFromName string

	// ── Worker ────────────────────────────────────────────────────────────────
	WorkerCount  int           // default 2
	PollInterval time.Duration // default 30s
	JobTimeout   time.Duration // default 30s
	MaxRetries   int           // default 3
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool { return c.Env == "production" }

// Load reads all environment variables and returns a validated Config.
// A .env file in the working directory is loaded first when present, so plain
// `go run ./cmd/api` works in development. Real environment variables always
// take precedence over .env values.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	seed, seedErr := getEnvAsUint64("RESPONSE_SEED", 0)

	c := &Config{
		Port:                   getEnv("PORT", "8080"),
		Env:                    getEnv("ENV", "development"),
		RequestTimeout:         getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		CORSAllowedOrigin:      getEnv("CORS_ALLOWED_ORIGIN", "*"),
		LexiconPath:            os.Getenv("LEXICON_PATH"),
		ResponseSeed:           seed,
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		EscalationDedupeWindow: getEnvAsDuration("ESCALATION_DEDUPE_WINDOW", 15*time.Minute),
		ResendAPIKey:           os.Getenv("RESEND_API_KEY"),
		AlertEmailTo:           os.Getenv("ALERT_EMAIL_TO"),
		EmailFromAddr:          getEnv("EMAIL_FROM_ADDR", "alerts@mshauri.app"),
		EmailFromName:          getEnv("EMAIL_FROM_NAME", "M-Shauri"),
		WorkerCount:            getEnvAsInt("WORKER_COUNT", 2),
		PollInterval:           getEnvAsDuration("POLL_INTERVAL", 30*time.Second),
		JobTimeout:             getEnvAsDuration("JOB_TIMEOUT", 30*time.Second),
		MaxRetries:             getEnvAsInt("MAX_RETRIES", 3),
	}

	if seedErr != nil {
		return c, errors.Join(seedErr, c.validate())
	}
	return c, c.validate()
}

func (c *Config) validate() error {
	var errs []error

	if c.IsProduction() && c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing required env var in production: DATABASE_URL"))
	}

	if c.ResendAPIKey != "" && c.AlertEmailTo == "" {
		errs = append(errs, errors.New("ALERT_EMAIL_TO is required when RESEND_API_KEY is set"))
	}

	for name, v := range map[string]int{
		"WORKER_COUNT": c.WorkerCount,
		"MAX_RETRIES":  c.MaxRetries,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}

	for name, d := range map[string]time.Duration{
		"REQUEST_TIMEOUT":          c.RequestTimeout,
		"ESCALATION_DEDUPE_WINDOW": c.EscalationDedupeWindow,
		"POLL_INTERVAL":            c.PollInterval,
		"JOB_TIMEOUT":              c.JobTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	return errors.Join(errs...)
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) (uint64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s must be an unsigned integer: %w", key, err)
	}
	return value, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	// A plain integer is read as seconds, or minutes for *_MINUTES keys.
	if value, err := strconv.Atoi(valueStr); err == nil {
		if strings.HasSuffix(key, "_MINUTES") {
			return time.Duration(value) * time.Minute
		}
		return time.Duration(value) * time.Second
	}
	// Fall back to Go duration syntax: "30s", "5m", "1h", etc.
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	return defaultValue
}
