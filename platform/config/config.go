// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ums_backend/platform/validator"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetMigrationsEnabled() bool
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RedisConfig provides the Redis connection used for caching and leases.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq-backed purge scheduler.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetPurgeSchedule() string
	GetPurgeLockTTL() time.Duration
}

// PurgeConfig provides the batch parameters of the withdrawal purge.
type PurgeConfig interface {
	GetPurgeBatchSize() int
	GetPurgeMaxRetryAttempts() int
	GetPurgeLocation() *time.Location
}

// PolicyCacheConfig provides the TTL of cached policy values.
type PolicyCacheConfig interface {
	GetPolicyCacheTTL() time.Duration
}

// KeycloakConfig provides identity provider admin API settings.
type KeycloakConfig interface {
	GetKeycloakBaseURL() string
	GetKeycloakRealm() string
	GetKeycloakClientID() string
	GetKeycloakClientSecret() string
	GetKeycloakTimeout() time.Duration
	GetKeycloakRatePerSecond() float64
}

// KafkaConfig provides message bus settings.
type KafkaConfig interface {
	GetKafkaBrokers() []string
	IsKafkaEnabled() bool
}

// OutboxRelayConfig provides settings for the built-in outbox relay.
type OutboxRelayConfig interface {
	KafkaConfig
	IsOutboxRelayEnabled() bool
	GetOutboxRelayInterval() time.Duration
	GetOutboxRelayBatchSize() int
}

// AlertConfig provides operator alert routing.
type AlertConfig interface {
	KafkaConfig
	GetAlertMailTopic() string
	GetAlertServiceName() string
}

// EmailConfig provides settings for the SMTP alert sink.
type EmailConfig interface {
	IsSMTPEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetAlertEmailFrom() string
	GetAlertEmailTo() []string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketPurgeReports() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env               string `validate:"required"`
	HTTPAddr          string `validate:"required"`
	DatabaseURL       string `validate:"required"`
	MigrationsEnabled bool
	JWTAccessSecret   string
	CORSAllowAll      bool
	CORSOrigins       []string
	CORSAllowCreds    bool

	RedisURL         string `validate:"required"`
	RedisTLSInsecure bool
	AsynqQueueName   string `validate:"required"`
	AsynqConcurrency int    `validate:"gte=1"`
	PurgeSchedule    string `validate:"required"`
	PurgeLockTTL     time.Duration

	PurgeBatchSize        int `validate:"gte=1"`
	PurgeMaxRetryAttempts int `validate:"gte=1"`
	PurgeTimezone         string
	PurgeLocation         *time.Location
	PolicyCacheTTL        time.Duration

	KeycloakBaseURL       string `validate:"required,url"`
	KeycloakRealm         string `validate:"required"`
	KeycloakClientID      string `validate:"required"`
	KeycloakClientSecret  string `validate:"required"`
	KeycloakTimeout       time.Duration
	KeycloakRatePerSecond float64 `validate:"gt=0"`

	KafkaBrokers        []string
	OutboxRelayEnabled  bool
	OutboxRelayInterval time.Duration
	OutboxRelayBatch    int
	AlertMailTopic      string
	AlertServiceName    string

	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	AlertEmailFrom string
	AlertEmailTo   []string

	MinIOEndpoint           string
	MinIOAccessKey          string
	MinIOSecretKey          string
	MinIOUseSSL             bool
	MinioBucketPurgeReports string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetMigrationsEnabled() bool { return c.MigrationsEnabled }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string            { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool      { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string      { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int       { return c.AsynqConcurrency }
func (c *Config) GetPurgeSchedule() string       { return c.PurgeSchedule }
func (c *Config) GetPurgeLockTTL() time.Duration { return c.PurgeLockTTL }

// PurgeConfig implementation
func (c *Config) GetPurgeBatchSize() int        { return c.PurgeBatchSize }
func (c *Config) GetPurgeMaxRetryAttempts() int { return c.PurgeMaxRetryAttempts }
func (c *Config) GetPurgeLocation() *time.Location {
	if c.PurgeLocation == nil {
		return time.UTC
	}
	return c.PurgeLocation
}

// PolicyCacheConfig implementation
func (c *Config) GetPolicyCacheTTL() time.Duration { return c.PolicyCacheTTL }

// KeycloakConfig implementation
func (c *Config) GetKeycloakBaseURL() string        { return c.KeycloakBaseURL }
func (c *Config) GetKeycloakRealm() string          { return c.KeycloakRealm }
func (c *Config) GetKeycloakClientID() string       { return c.KeycloakClientID }
func (c *Config) GetKeycloakClientSecret() string   { return c.KeycloakClientSecret }
func (c *Config) GetKeycloakTimeout() time.Duration { return c.KeycloakTimeout }
func (c *Config) GetKeycloakRatePerSecond() float64 { return c.KeycloakRatePerSecond }

// KafkaConfig implementation
func (c *Config) GetKafkaBrokers() []string { return c.KafkaBrokers }
func (c *Config) IsKafkaEnabled() bool      { return len(c.KafkaBrokers) > 0 }

// OutboxRelayConfig implementation
func (c *Config) IsOutboxRelayEnabled() bool            { return c.OutboxRelayEnabled && c.IsKafkaEnabled() }
func (c *Config) GetOutboxRelayInterval() time.Duration { return c.OutboxRelayInterval }
func (c *Config) GetOutboxRelayBatchSize() int          { return c.OutboxRelayBatch }

// AlertConfig implementation
func (c *Config) GetAlertMailTopic() string   { return c.AlertMailTopic }
func (c *Config) GetAlertServiceName() string { return c.AlertServiceName }

// EmailConfig implementation
func (c *Config) IsSMTPEnabled() bool       { return c.SMTPHost != "" && len(c.AlertEmailTo) > 0 }
func (c *Config) GetSMTPHost() string       { return c.SMTPHost }
func (c *Config) GetSMTPPort() int          { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string   { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string   { return c.SMTPPassword }
func (c *Config) GetAlertEmailFrom() string { return c.AlertEmailFrom }
func (c *Config) GetAlertEmailTo() []string { return c.AlertEmailTo }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) IsMinIOEnabled() bool      { return c.MinIOEndpoint != "" }

func (c *Config) GetMinioBucketPurgeReports() string { return c.MinioBucketPurgeReports }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		MigrationsEnabled:     strings.EqualFold(getEnv("MIGRATIONS_ENABLED", "true"), "true"),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "withdraw"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "2")),
		PurgeSchedule:         getEnv("WITHDRAW_PURGE_SCHEDULE", "0 3 * * *"),
		PurgeLockTTL:          mustDuration(getEnv("WITHDRAW_PURGE_LOCK_TTL", "2h")),
		PurgeBatchSize:        mustInt(getEnv("WITHDRAW_PURGE_BATCH_SIZE", "100")),
		PurgeMaxRetryAttempts: mustInt(getEnv("WITHDRAW_PURGE_MAX_RETRY_ATTEMPTS", "3")),
		PurgeTimezone:         getEnv("WITHDRAW_PURGE_TIMEZONE", "UTC"),
		PolicyCacheTTL:        mustDuration(getEnv("POLICY_CACHE_TTL", "10m")),
		KeycloakBaseURL:       strings.TrimSuffix(getEnv("KEYCLOAK_BASE_URL", ""), "/"),
		KeycloakRealm:         getEnv("KEYCLOAK_REALM", ""),
		KeycloakClientID:      getEnv("KEYCLOAK_CLIENT_ID", ""),
		KeycloakClientSecret:  getEnv("KEYCLOAK_CLIENT_SECRET", ""),
		KeycloakTimeout:       mustDuration(getEnv("KEYCLOAK_TIMEOUT", "10s")),
		KeycloakRatePerSecond: mustFloat(getEnv("KEYCLOAK_RATE_PER_SECOND", "10")),
		KafkaBrokers:          splitCSV(getEnv("KAFKA_BROKERS", "")),
		OutboxRelayEnabled:    strings.EqualFold(getEnv("OUTBOX_RELAY_ENABLED", "false"), "true"),
		OutboxRelayInterval:   mustDuration(getEnv("OUTBOX_RELAY_INTERVAL", "2s")),
		OutboxRelayBatch:      mustInt(getEnv("OUTBOX_RELAY_BATCH", "50")),
		AlertMailTopic:        getEnv("ALERT_MAIL_TOPIC", "mail-send-event"),
		AlertServiceName:      getEnv("ALERT_SERVICE_NAME", "UMS"),
		SMTPHost:              getEnv("SMTP_HOST", ""),
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		AlertEmailFrom:        getEnv("ALERT_EMAIL_FROM", ""),
		AlertEmailTo:          splitCSV(getEnv("ALERT_EMAIL_TO", "")),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
	}
	cfg.MinioBucketPurgeReports = getEnv("MINIO_BUCKET_PURGE_REPORTS", "purge-reports")

	loc, err := time.LoadLocation(cfg.PurgeTimezone)
	if err != nil {
		return nil, fmt.Errorf("WITHDRAW_PURGE_TIMEZONE: %w", err)
	}
	cfg.PurgeLocation = loc

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.IsSMTPEnabled() && cfg.AlertEmailFrom == "" {
		return nil, fmt.Errorf("ALERT_EMAIL_FROM is required when SMTP alerts are enabled")
	}
	if cfg.OutboxRelayEnabled && !cfg.IsKafkaEnabled() {
		return nil, fmt.Errorf("KAFKA_BROKERS is required when OUTBOX_RELAY_ENABLED is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
