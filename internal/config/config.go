/**
 * @description
 * This package handles the configuration management for the teller service. It
 * uses Viper to read an optional .env file plus environment variables. Invalid
 * values are logged and coerced back to their defaults instead of failing startup.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading.
 * - github.com/shopspring/decimal: monetary limits.
 */

package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	defaultServerPort             = "8080"
	defaultNotificationExchange   = "banksystem.events"
	defaultNotificationSender     = "no-reply@banksystem.local"
	defaultRedisDownloadPrefix    = "banksystem:downloads"
	defaultDownloadRateLimit      = 10
	defaultCORSAllowedOrigins     = "https://*,http://*"
	defaultMinDepositAmount       = "10"
	defaultMinWithdrawalAmount    = "10"
	defaultMaxWithdrawalAmount    = "10000"
	defaultReportTimezone         = "UTC"
	defaultDBMaxConns             = 20
	defaultDBMinConns             = 2
	defaultOutboxPollIntervalMS   = 1200
	defaultOutboxBatchSize        = 50
	defaultOutboxRetentionDays    = 14
	defaultOutboxPurgeSchedule    = "0 3 * * *"
	defaultShutdownTimeoutSeconds = 10
)

// Config holds all the configuration variables for the teller service.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	NotificationExchange string `mapstructure:"NOTIFICATION_EXCHANGE"`
	NotificationSender   string `mapstructure:"NOTIFICATION_SENDER"`

	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisDownloadPrefix        string `mapstructure:"REDIS_DOWNLOAD_PREFIX"`
	DownloadRateLimitPerMinute int    `mapstructure:"DOWNLOAD_RATE_LIMIT_PER_MINUTE"`

	AuthJWKSURL        string   `mapstructure:"AUTH_JWKS_URL"`
	AuthHMACSecret     string   `mapstructure:"AUTH_HMAC_SECRET"`
	AuthAudience       string   `mapstructure:"AUTH_AUDIENCE"`
	AuthIssuer         string   `mapstructure:"AUTH_ISSUER"`
	CORSAllowedOrigins []string `mapstructure:"-"`

	MinDepositAmount    decimal.Decimal `mapstructure:"-"`
	MinWithdrawalAmount decimal.Decimal `mapstructure:"-"`
	MaxWithdrawalAmount decimal.Decimal `mapstructure:"-"`
	RecordEnquiries     bool            `mapstructure:"RECORD_ENQUIRIES"`
	ReportTimezone      string          `mapstructure:"REPORT_TIMEZONE"`
	ReportLocation      *time.Location  `mapstructure:"-"`

	OutboxPollIntervalMS   int    `mapstructure:"OUTBOX_POLL_INTERVAL_MS"`
	OutboxBatchSize        int    `mapstructure:"OUTBOX_BATCH_SIZE"`
	OutboxRetentionDays    int    `mapstructure:"OUTBOX_RETENTION_DAYS"`
	OutboxPurgeSchedule    string `mapstructure:"OUTBOX_PURGE_SCHEDULE"`
	ShutdownTimeoutSeconds int    `mapstructure:"SHUTDOWN_TIMEOUT_SECONDS"`
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", defaultServerPort)
	viper.SetDefault("DB_MAX_CONNS", defaultDBMaxConns)
	viper.SetDefault("DB_MIN_CONNS", defaultDBMinConns)
	viper.SetDefault("NOTIFICATION_EXCHANGE", defaultNotificationExchange)
	viper.SetDefault("NOTIFICATION_SENDER", defaultNotificationSender)
	viper.SetDefault("REDIS_DOWNLOAD_PREFIX", defaultRedisDownloadPrefix)
	viper.SetDefault("DOWNLOAD_RATE_LIMIT_PER_MINUTE", defaultDownloadRateLimit)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", defaultCORSAllowedOrigins)
	viper.SetDefault("MIN_DEPOSIT_AMOUNT", defaultMinDepositAmount)
	viper.SetDefault("MIN_WITHDRAWAL_AMOUNT", defaultMinWithdrawalAmount)
	viper.SetDefault("MAX_WITHDRAWAL_AMOUNT", defaultMaxWithdrawalAmount)
	viper.SetDefault("RECORD_ENQUIRIES", true)
	viper.SetDefault("REPORT_TIMEZONE", defaultReportTimezone)
	viper.SetDefault("OUTBOX_POLL_INTERVAL_MS", defaultOutboxPollIntervalMS)
	viper.SetDefault("OUTBOX_BATCH_SIZE", defaultOutboxBatchSize)
	viper.SetDefault("OUTBOX_RETENTION_DAYS", defaultOutboxRetentionDays)
	viper.SetDefault("OUTBOX_PURGE_SCHEDULE", defaultOutboxPurgeSchedule)
	viper.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSeconds)

	for _, key := range []string{
		"SERVER_PORT", "PORT", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"RABBITMQ_URL", "NOTIFICATION_EXCHANGE", "NOTIFICATION_SENDER",
		"REDIS_URL", "REDIS_DOWNLOAD_PREFIX", "DOWNLOAD_RATE_LIMIT_PER_MINUTE",
		"AUTH_JWKS_URL", "AUTH_HMAC_SECRET", "AUTH_AUDIENCE", "AUTH_ISSUER", "CORS_ALLOWED_ORIGINS",
		"MIN_DEPOSIT_AMOUNT", "MIN_WITHDRAWAL_AMOUNT", "MAX_WITHDRAWAL_AMOUNT",
		"RECORD_ENQUIRIES", "REPORT_TIMEZONE",
		"OUTBOX_POLL_INTERVAL_MS", "OUTBOX_BATCH_SIZE", "OUTBOX_RETENTION_DAYS", "OUTBOX_PURGE_SCHEDULE",
		"SHUTDOWN_TIMEOUT_SECONDS",
	} {
		_ = viper.BindEnv(key)
	}
	// Clerk deployments already export this name.
	_ = viper.BindEnv("AUTH_JWKS_URL", "AUTH_JWKS_URL", "CLERK_JWKS_URL")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.AuthJWKSURL = strings.TrimSpace(config.AuthJWKSURL)
	config.AuthHMACSecret = strings.TrimSpace(config.AuthHMACSecret)
	config.AuthAudience = strings.TrimSpace(config.AuthAudience)
	config.AuthIssuer = strings.TrimSpace(config.AuthIssuer)

	config.NotificationExchange = stringOrDefault(config.NotificationExchange, defaultNotificationExchange)
	config.NotificationSender = stringOrDefault(config.NotificationSender, defaultNotificationSender)
	config.RedisDownloadPrefix = stringOrDefault(config.RedisDownloadPrefix, defaultRedisDownloadPrefix)
	config.OutboxPurgeSchedule = stringOrDefault(config.OutboxPurgeSchedule, defaultOutboxPurgeSchedule)
	config.CORSAllowedOrigins = splitList(stringOrDefault(viper.GetString("CORS_ALLOWED_ORIGINS"), defaultCORSAllowedOrigins))

	config.MinDepositAmount = decimalSetting("MIN_DEPOSIT_AMOUNT", defaultMinDepositAmount)
	config.MinWithdrawalAmount = decimalSetting("MIN_WITHDRAWAL_AMOUNT", defaultMinWithdrawalAmount)
	config.MaxWithdrawalAmount = decimalSetting("MAX_WITHDRAWAL_AMOUNT", defaultMaxWithdrawalAmount)
	if config.MaxWithdrawalAmount.IsPositive() && config.MaxWithdrawalAmount.LessThan(config.MinWithdrawalAmount) {
		log.Printf("level=warn component=config msg=\"max withdrawal below min withdrawal; disabling max\" max=%s min=%s", config.MaxWithdrawalAmount, config.MinWithdrawalAmount)
		config.MaxWithdrawalAmount = decimal.Zero
	}

	config.ReportTimezone = stringOrDefault(config.ReportTimezone, defaultReportTimezone)
	location, locErr := time.LoadLocation(config.ReportTimezone)
	if locErr != nil {
		log.Printf("level=warn component=config msg=\"invalid REPORT_TIMEZONE; using UTC\" value=%q err=%v", config.ReportTimezone, locErr)
		config.ReportTimezone = defaultReportTimezone
		location = time.UTC
	}
	config.ReportLocation = location

	if config.DBMaxConns <= 0 {
		config.DBMaxConns = defaultDBMaxConns
	}
	if config.DBMinConns < 0 || config.DBMinConns > config.DBMaxConns {
		log.Printf("level=warn component=config msg=\"invalid DB_MIN_CONNS; using default\" value=%d", config.DBMinConns)
		config.DBMinConns = defaultDBMinConns
		if config.DBMinConns > config.DBMaxConns {
			config.DBMinConns = config.DBMaxConns
		}
	}
	if config.DownloadRateLimitPerMinute <= 0 {
		config.DownloadRateLimitPerMinute = defaultDownloadRateLimit
	}
	if config.OutboxPollIntervalMS <= 0 {
		config.OutboxPollIntervalMS = defaultOutboxPollIntervalMS
	}
	if config.OutboxBatchSize <= 0 {
		config.OutboxBatchSize = defaultOutboxBatchSize
	}
	if config.OutboxRetentionDays <= 0 {
		config.OutboxRetentionDays = defaultOutboxRetentionDays
	}
	if config.ShutdownTimeoutSeconds <= 0 {
		config.ShutdownTimeoutSeconds = defaultShutdownTimeoutSeconds
	}

	return
}

// ValidateForServe checks the settings the HTTP server cannot start without.
func (c Config) ValidateForServe() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be configured")
	}
	hasJWKS := c.AuthJWKSURL != ""
	hasHMAC := c.AuthHMACSecret != ""
	if hasJWKS == hasHMAC {
		return errors.New("exactly one of AUTH_JWKS_URL or AUTH_HMAC_SECRET must be configured")
	}
	return nil
}

// OutboxPollInterval returns the dispatcher tick as a duration.
func (c Config) OutboxPollInterval() time.Duration {
	return time.Duration(c.OutboxPollIntervalMS) * time.Millisecond
}

// OutboxRetention returns how long published notifications are kept.
func (c Config) OutboxRetention() time.Duration {
	return time.Duration(c.OutboxRetentionDays) * 24 * time.Hour
}

func decimalSetting(key, fallback string) decimal.Decimal {
	raw := strings.TrimSpace(viper.GetString(key))
	if raw == "" {
		return decimal.RequireFromString(fallback)
	}
	value, err := decimal.NewFromString(raw)
	if err != nil || value.IsNegative() {
		log.Printf("level=warn component=config msg=\"invalid amount setting; using default\" key=%s value=%q default=%s", key, raw, fallback)
		return decimal.RequireFromString(fallback)
	}
	return value
}

func stringOrDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
