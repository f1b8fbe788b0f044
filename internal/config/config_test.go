package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"TELEGRAM_TOKEN", "STORAGE_DRIVER", "DATABASE_URL", "SIMULATED_LATENCY",
		"DIGEST_TIME", "MAX_INSTANCES", "LOG_LEVEL", "TIMEZONE", "REMINDER_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, "taskflow.db", cfg.DatabaseURL)
	assert.Equal(t, time.Duration(0), cfg.SimulatedLatency)
	assert.Equal(t, "08:00", cfg.DigestTime)
	assert.Equal(t, time.Duration(0), cfg.ReminderInterval)
	assert.Equal(t, 10, cfg.MaxInstances)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Error(t, cfg.RequireTelegram())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", " 123:abc ")
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "data/tasks.db")
	t.Setenv("SIMULATED_LATENCY", "250ms")
	t.Setenv("MAX_INSTANCES", "25")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("REMINDER_INTERVAL", "2h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.NoError(t, cfg.RequireTelegram())
	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
	assert.Equal(t, "data/tasks.db", cfg.DatabaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.SimulatedLatency)
	assert.Equal(t, 25, cfg.MaxInstances)
	assert.Equal(t, 2*time.Hour, cfg.ReminderInterval)
	assert.Equal(t, time.UTC, cfg.Location)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Run("bad numbers fall back", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SIMULATED_LATENCY", "soon")
		t.Setenv("MAX_INSTANCES", "-2")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), cfg.SimulatedLatency)
		assert.Equal(t, 10, cfg.MaxInstances)
	})

	t.Run("unknown driver", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("STORAGE_DRIVER", "mongo")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown timezone", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TIMEZONE", "Mars/Olympus")
		_, err := Load()
		assert.Error(t, err)
	})
}
