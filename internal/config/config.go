package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config keeps runtime settings for the CLI and the bot.
type Config struct {
	TelegramToken    string
	StorageDriver    string
	DatabaseURL      string
	SimulatedLatency time.Duration
	DigestTime       string
	ReminderInterval time.Duration
	MaxInstances     int
	LogLevel         string
	Location         *time.Location
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is honoured when present; real
// environment variables win over it.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken:    strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", DriverMemory)),
		DatabaseURL:      getEnv("DATABASE_URL", "taskflow.db"),
		SimulatedLatency: parseDuration(os.Getenv("SIMULATED_LATENCY")),
		DigestTime:       getEnv("DIGEST_TIME", "08:00"),
		ReminderInterval: parseDuration(os.Getenv("REMINDER_INTERVAL")),
		MaxInstances:     parsePositiveInt(os.Getenv("MAX_INSTANCES"), 10),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Location:         time.Local,
	}

	if tz := strings.TrimSpace(os.Getenv("TIMEZONE")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("TIMEZONE %q: %w", tz, err)
		}
		cfg.Location = loc
	}

	switch cfg.StorageDriver {
	case DriverMemory, DriverSQLite:
	default:
		return cfg, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverMemory, DriverSQLite, cfg.StorageDriver)
	}

	return cfg, nil
}

// RequireTelegram reports an error when the bot token is missing.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDuration(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func parsePositiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
