// internal/config/config.go
// Centralized configuration management
// Loads from environment variables with sensible defaults

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/imadgeboyega/gratitude-backend/internal/models"
)

// Storage backends
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Storage
	StorageBackend       string // "postgres", "sqlite" or "dynamodb"; inferred when empty
	DatabaseURL          string
	SQLitePath           string
	AWSRegion            string
	DynamoDBEndpoint     string
	DynamoDBUsersTable   string
	DynamoDBEntriesTable string
	DynamoDBCreateTables bool

	// Redis (optional, webhook redelivery guard)
	RedisURL        string
	WebhookDedupTTL time.Duration

	// SMS
	SMSProvider              string // "twilio" or "mock"
	TwilioAccountSID         string
	TwilioAuthToken          string
	TwilioFromNumber         string
	WebhookValidateSignature bool
	PublicBaseURL            string // externally visible URL used for Twilio signatures

	// Email
	EmailProvider  string // "smtp", "sendgrid" or "mock"
	EmailFrom      string
	EmailFromName  string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SendGridAPIKey string

	// Prompt generation
	PromptProvider  string // "deepseek" or "static"
	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	PromptModel     string

	// Scheduler
	TickInterval        time.Duration
	MatchTolerance      int
	MatchMode           string
	SummaryWeekday      time.Weekday
	DispatchConcurrency int
	ExternalCallTimeout time.Duration

	// Admin API
	AdminPasswordHash string
	JWTSecret         string
	AdminTokenExpiry  time.Duration
}

const defaultJWTSecret = "your-super-secret-key-change-this-in-production"

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Storage
		StorageBackend:       strings.ToLower(getEnv("STORAGE_BACKEND", "")),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		SQLitePath:           getEnv("SQLITE_PATH", ""),
		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		DynamoDBEndpoint:     getEnv("DYNAMODB_ENDPOINT", ""),
		DynamoDBUsersTable:   getEnv("DYNAMODB_USERS_TABLE", ""),
		DynamoDBEntriesTable: getEnv("DYNAMODB_ENTRIES_TABLE", ""),
		DynamoDBCreateTables: getEnvBool("DYNAMODB_CREATE_TABLES", false),

		// Redis
		RedisURL:        getEnv("REDIS_URL", ""),
		WebhookDedupTTL: getEnvDuration("WEBHOOK_DEDUP_TTL", "24h"),

		// SMS
		SMSProvider:              getEnv("SMS_PROVIDER", "mock"),
		TwilioAccountSID:         getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:          getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:         getEnv("TWILIO_FROM_NUMBER", ""),
		WebhookValidateSignature: getEnvBool("WEBHOOK_VALIDATE_SIGNATURE", false),
		PublicBaseURL:            getEnv("PUBLIC_BASE_URL", ""),

		// Email
		EmailProvider:  getEnv("EMAIL_PROVIDER", "mock"),
		EmailFrom:      getEnv("EMAIL_FROM", "noreply@gratitude.app"),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Gratitude Journal"),
		SMTPHost:       getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:       getEnvInt("SMTP_PORT", 587),
		SMTPUser:       getEnv("SMTP_USER", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),

		// Prompt generation
		PromptProvider:  getEnv("PROMPT_PROVIDER", "static"),
		DeepSeekAPIKey:  getEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekBaseURL: getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com"),
		PromptModel:     getEnv("PROMPT_MODEL", "deepseek-chat"),

		// Scheduler
		TickInterval:        getEnvDuration("TICK_INTERVAL", "1m"),
		MatchTolerance:      getEnvInt("MATCH_TOLERANCE_MINUTES", 2),
		MatchMode:           getEnv("MATCH_MODE", "same-hour"),
		SummaryWeekday:      getEnvWeekday("SUMMARY_WEEKDAY", time.Sunday),
		DispatchConcurrency: getEnvInt("DISPATCH_CONCURRENCY", 8),
		ExternalCallTimeout: getEnvDuration("EXTERNAL_CALL_TIMEOUT", "15s"),

		// Admin API
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:         getEnv("JWT_SECRET", defaultJWTSecret),
		AdminTokenExpiry:  getEnvDuration("ADMIN_TOKEN_EXPIRY", "12h"),
	}

	// Outside production a missing DeepSeek key degrades to the static prompt
	if cfg.PromptProvider == "deepseek" && cfg.DeepSeekAPIKey == "" && !cfg.IsProduction() {
		cfg.PromptProvider = "static"
	}

	return cfg
}

// ResolveStorageBackend returns the configured backend, inferring it from the
// connection settings when STORAGE_BACKEND is empty.
func (c *Config) ResolveStorageBackend() (string, error) {
	switch c.StorageBackend {
	case BackendPostgres, BackendSQLite, BackendDynamoDB:
		return c.StorageBackend, nil
	case "":
	default:
		return "", models.NewConfigurationError("STORAGE_BACKEND", "unknown storage backend %q", c.StorageBackend)
	}

	switch {
	case c.DatabaseURL != "":
		return BackendPostgres, nil
	case c.SQLitePath != "":
		return BackendSQLite, nil
	case c.DynamoDBUsersTable != "":
		return BackendDynamoDB, nil
	}
	return "", models.NewConfigurationError("STORAGE_BACKEND",
		"no storage configured: set DATABASE_URL, SQLITE_PATH or DYNAMODB_USERS_TABLE")
}

// Validate validates the configuration. Every failure is a *models.ConfigurationError.
func (c *Config) Validate() error {
	if c.JWTSecret == defaultJWTSecret && c.IsProduction() && c.AdminPasswordHash != "" {
		return models.NewConfigurationError("JWT_SECRET", "JWT secret must be changed for production")
	}

	// Storage validation
	backend, err := c.ResolveStorageBackend()
	if err != nil {
		return err
	}
	switch backend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return models.NewConfigurationError("DATABASE_URL", "database URL is required for the postgres backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return models.NewConfigurationError("SQLITE_PATH", "database path is required for the sqlite backend")
		}
	case BackendDynamoDB:
		if c.DynamoDBUsersTable == "" || c.DynamoDBEntriesTable == "" {
			return models.NewConfigurationError("DYNAMODB_USERS_TABLE", "users and entries table names are required for the dynamodb backend")
		}
		if c.AWSRegion == "" {
			return models.NewConfigurationError("AWS_REGION", "AWS region is required for the dynamodb backend")
		}
	}

	// Email validation
	switch c.EmailProvider {
	case "smtp":
		if c.SMTPHost == "" || c.SMTPUser == "" || c.SMTPPassword == "" {
			return models.NewConfigurationError("SMTP_HOST", "SMTP configuration incomplete")
		}
	case "sendgrid":
		if c.SendGridAPIKey == "" {
			return models.NewConfigurationError("SENDGRID_API_KEY", "SendGrid API key is required")
		}
	case "mock":
		if c.IsProduction() {
			return models.NewConfigurationError("EMAIL_PROVIDER", "mock email provider cannot be used in production")
		}
	default:
		return models.NewConfigurationError("EMAIL_PROVIDER", "invalid email provider: %s", c.EmailProvider)
	}

	// SMS validation
	switch c.SMSProvider {
	case "twilio":
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioFromNumber == "" {
			return models.NewConfigurationError("TWILIO_ACCOUNT_SID", "Twilio configuration incomplete")
		}
	case "mock":
		if c.IsProduction() {
			return models.NewConfigurationError("SMS_PROVIDER", "mock SMS provider cannot be used in production")
		}
	default:
		return models.NewConfigurationError("SMS_PROVIDER", "invalid SMS provider: %s", c.SMSProvider)
	}

	if c.WebhookValidateSignature && c.TwilioAuthToken == "" {
		return models.NewConfigurationError("WEBHOOK_VALIDATE_SIGNATURE", "signature validation needs TWILIO_AUTH_TOKEN")
	}

	// Prompt validation
	switch c.PromptProvider {
	case "deepseek":
		if c.DeepSeekAPIKey == "" {
			return models.NewConfigurationError("DEEPSEEK_API_KEY", "DeepSeek API key is required")
		}
	case "static":
	default:
		return models.NewConfigurationError("PROMPT_PROVIDER", "invalid prompt provider: %s", c.PromptProvider)
	}

	// Scheduler validation
	if c.TickInterval < time.Second {
		return models.NewConfigurationError("TICK_INTERVAL", "tick interval must be at least 1s")
	}
	if c.MatchTolerance < 0 || c.MatchTolerance > 30 {
		return models.NewConfigurationError("MATCH_TOLERANCE_MINUTES", "tolerance must be between 0 and 30 minutes")
	}
	if c.DispatchConcurrency < 1 {
		return models.NewConfigurationError("DISPATCH_CONCURRENCY", "concurrency must be positive")
	}
	if c.ExternalCallTimeout <= 0 {
		return models.NewConfigurationError("EXTERNAL_CALL_TIMEOUT", "timeout must be positive")
	}

	return nil
}

// AdminEnabled reports whether the admin API should be mounted
func (c *Config) AdminEnabled() bool {
	return c.AdminPasswordHash != ""
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Helper functions

// getEnv gets a string value from environment with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment with a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := cast.ToIntE(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment with a default
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := cast.ToDurationE(value)
	if err != nil {
		// If parsing fails, try to parse the default
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

// getEnvBool gets a boolean value from environment with a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := cast.ToBoolE(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvWeekday accepts a weekday name ("sunday", "Sun") or number (0 = Sunday)
func getEnvWeekday(key string, defaultValue time.Weekday) time.Weekday {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return defaultValue
	}
	if n, err := cast.ToIntE(value); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n)
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if value == name || value == name[:3] {
			return d
		}
	}
	return defaultValue
}

// String summarizes the non-secret settings for startup logs
func (c *Config) String() string {
	backend, _ := c.ResolveStorageBackend()
	return fmt.Sprintf("env=%s port=%s storage=%s sms=%s email=%s prompt=%s tick=%s",
		c.Environment, c.Port, backend, c.SMSProvider, c.EmailProvider, c.PromptProvider, c.TickInterval)
}
