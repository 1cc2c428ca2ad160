package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	SMTP      SMTPConfig
	Reminder  ReminderConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	MongoDB   MongoDBConfig
	MinIO     MinIOConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// CORSOrigin is sent as Access-Control-Allow-Origin; empty disables CORS headers.
	CORSOrigin string
}

func (s ServerConfig) Addr() string { return net.JoinHostPort(s.Host, s.Port) }

type DatabaseConfig struct {
	Driver string // sqlite or postgres
	Path   string
	DSN    string
}

type SMTPConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	TLS          string
	Disabled     bool
	Timeout      time.Duration
	MaxPerSecond float64
}

type ReminderConfig struct {
	Email      string
	WebhookURL string
	OutboxPath string
}

type RateLimitConfig struct {
	Documents int
	Reminders int
	Window    time.Duration
	UseRedis  bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string { return net.JoinHostPort(r.Host, r.Port) }

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	// REMINDER_TEST_EMAIL is the older name of REMINDER_EMAIL.
	_ = v.BindEnv("REMINDER_EMAIL", "REMINDER_EMAIL", "REMINDER_TEST_EMAIL")

	v.SetDefault("SERVER_PORT", "8000")
	v.SetDefault("SERVER_HOST", "127.0.0.1")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("DATABASE_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_PATH", "data/documents.db")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM", "doctrack@localhost")
	v.SetDefault("SMTP_TLS", "starttls")
	v.SetDefault("SMTP_DISABLED", false)
	v.SetDefault("SMTP_TIMEOUT_SECONDS", 10)
	v.SetDefault("SMTP_MAX_PER_SECOND", 5)
	v.SetDefault("REMINDER_EMAIL", "test@example.com")
	v.SetDefault("REMINDER_WEBHOOK_URL", "https://example.invalid/webhook")
	v.SetDefault("REMINDER_OUTBOX_PATH", "data/outbox.log")
	v.SetDefault("RATE_LIMIT_DOCUMENTS", 60)
	v.SetDefault("RATE_LIMIT_REMINDERS", 5)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("MONGODB_DATABASE", "doctrack")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("MINIO_BUCKET", "doctrack-outbox")
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			CORSOrigin:   v.GetString("CORS_ALLOW_ORIGIN"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("DATABASE_DRIVER")),
			Path:   v.GetString("DATABASE_PATH"),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		SMTP: SMTPConfig{
			Host:         v.GetString("SMTP_HOST"),
			Port:         v.GetInt("SMTP_PORT"),
			Username:     v.GetString("SMTP_USERNAME"),
			Password:     v.GetString("SMTP_PASSWORD"),
			From:         v.GetString("SMTP_FROM"),
			TLS:          strings.ToLower(v.GetString("SMTP_TLS")),
			Disabled:     v.GetBool("SMTP_DISABLED"),
			Timeout:      time.Duration(v.GetInt("SMTP_TIMEOUT_SECONDS")) * time.Second,
			MaxPerSecond: v.GetFloat64("SMTP_MAX_PER_SECOND"),
		},
		Reminder: ReminderConfig{
			Email:      v.GetString("REMINDER_EMAIL"),
			WebhookURL: v.GetString("REMINDER_WEBHOOK_URL"),
			OutboxPath: v.GetString("REMINDER_OUTBOX_PATH"),
		},
		RateLimit: RateLimitConfig{
			Documents: v.GetInt("RATE_LIMIT_DOCUMENTS"),
			Reminders: v.GetInt("RATE_LIMIT_REMINDERS"),
			Window:    time.Duration(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
			UseRedis:  v.GetBool("RATE_LIMIT_USE_REDIS"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("DATABASE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver)
	}
	switch c.SMTP.TLS {
	case "starttls", "ssl", "none":
	default:
		return fmt.Errorf("SMTP_TLS must be starttls, ssl or none, got %q", c.SMTP.TLS)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_SECONDS must be positive")
	}
	if c.RateLimit.UseRedis && c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required when RATE_LIMIT_USE_REDIS is set")
	}
	return nil
}
