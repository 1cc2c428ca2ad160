package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Addr())
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "data/documents.db", cfg.Database.Path)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "starttls", cfg.SMTP.TLS)
	assert.Equal(t, 10*time.Second, cfg.SMTP.Timeout)
	assert.Equal(t, "test@example.com", cfg.Reminder.Email)
	assert.Equal(t, "https://example.invalid/webhook", cfg.Reminder.WebhookURL)
	assert.Equal(t, 60, cfg.RateLimit.Documents)
	assert.Equal(t, 5, cfg.RateLimit.Reminders)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.False(t, cfg.RateLimit.UseRedis)
	assert.Equal(t, "doctrack", cfg.MongoDB.Database)
	assert.Equal(t, "doctrack-outbox", cfg.MinIO.Bucket)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_TLS", "SSL")
	t.Setenv("SMTP_DISABLED", "true")
	t.Setenv("REMINDER_EMAIL", "ops@example.com")
	t.Setenv("RATE_LIMIT_REMINDERS", "2")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "30")
	t.Setenv("RATE_LIMIT_USE_REDIS", "true")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("DATABASE_DRIVER", "Postgres")
	t.Setenv("DATABASE_DSN", "postgres://doctrack@localhost/doctrack")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, "ssl", cfg.SMTP.TLS)
	assert.True(t, cfg.SMTP.Disabled)
	assert.Equal(t, "ops@example.com", cfg.Reminder.Email)
	assert.Equal(t, 2, cfg.RateLimit.Reminders)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.True(t, cfg.RateLimit.UseRedis)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
}

func TestLoadConfig_LegacyReminderEmail(t *testing.T) {
	t.Setenv("REMINDER_TEST_EMAIL", "legacy@example.com")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "legacy@example.com", cfg.Reminder.Email)

	t.Setenv("REMINDER_EMAIL", "ops@example.com")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", cfg.Reminder.Email)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":       {"DATABASE_DRIVER": "oracle"},
		"postgres without dsn": {"DATABASE_DRIVER": "postgres"},
		"bad tls":              {"SMTP_TLS": "maybe"},
		"zero window":          {"RATE_LIMIT_WINDOW_SECONDS": "0"},
		"redis without host":   {"RATE_LIMIT_USE_REDIS": "true"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}
