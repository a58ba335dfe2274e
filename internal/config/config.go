// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Server Configuration
	GinMode       string        `mapstructure:"GIN_MODE"`
	ServerHost    string        `mapstructure:"SERVER_HOST"`
	ServerPort    string        `mapstructure:"SERVER_PORT"`
	ServerTimeout time.Duration `mapstructure:"-"` // SERVER_TIMEOUT_SECONDS
	AppBaseURL    string        `mapstructure:"APP_BASE_URL"`

	// Database Configuration
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBTimezone        string        `mapstructure:"DB_TIMEZONE"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"-"` // DB_CONN_MAX_LIFETIME_MINUTES
	DBApplyPolicies   bool          `mapstructure:"DB_APPLY_POLICIES"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Firebase Configuration
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseProjectID             string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseWebAPIKey             string `mapstructure:"FIREBASE_WEB_API_KEY"`

	// Google OAuth Configuration
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	OAuthRedirectURL   string `mapstructure:"OAUTH_REDIRECT_URL"`

	// Session Configuration
	SessionStore        string        `mapstructure:"SESSION_STORE"` // "memory" or "redis"
	SessionCookieName   string        `mapstructure:"SESSION_COOKIE_NAME"`
	SessionCookieSecure bool          `mapstructure:"SESSION_COOKIE_SECURE"`
	ClientIdleTimeout   time.Duration `mapstructure:"-"` // CLIENT_IDLE_TIMEOUT_MINUTES

	// Redis Configuration
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Cron Jobs
	ClientSweepSchedule      string `mapstructure:"CLIENT_SWEEP_SCHEDULE"`
	VerificationSyncSchedule string `mapstructure:"VERIFICATION_SYNC_SCHEDULE"`
}

// DSN returns the libpq connection string built from the individual DB_* settings.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode, c.DBTimezone)
}

// UsesRedisSessions reports whether provider sessions are kept in Redis.
func (c *Config) UsesRedisSessions() bool {
	return strings.EqualFold(c.SessionStore, "redis")
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Duration fields are configured as whole seconds/minutes.
	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second
	cfg.DBConnMaxLifetime = time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute
	cfg.ClientIdleTimeout = time.Duration(v.GetInt("CLIENT_IDLE_TIMEOUT_MINUTES")) * time.Minute

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "donation_match_db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)
	v.SetDefault("DB_APPLY_POLICIES", true)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("FIREBASE_PROJECT_ID", "") // Optional, inferred from the credentials file
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "")
	v.SetDefault("FIREBASE_WEB_API_KEY", "")

	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("OAUTH_REDIRECT_URL", "http://localhost:8080/api/v1/auth/oauth/google/callback")

	v.SetDefault("SESSION_STORE", "memory")
	v.SetDefault("SESSION_COOKIE_NAME", "dm_client")
	v.SetDefault("SESSION_COOKIE_SECURE", false)
	v.SetDefault("CLIENT_IDLE_TIMEOUT_MINUTES", 60)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CLIENT_SWEEP_SCHEDULE", "@every 5m")
	v.SetDefault("VERIFICATION_SYNC_SCHEDULE", "@every 10m")
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.FirebaseServiceAccountKeyPath) == "" {
		return fmt.Errorf("FATAL: FIREBASE_SERVICE_ACCOUNT_KEY_PATH is not set. This is required for Firebase Admin SDK initialization")
	}
	if _, err := os.Stat(c.FirebaseServiceAccountKeyPath); os.IsNotExist(err) {
		return fmt.Errorf("FATAL: Firebase service account key file specified in FIREBASE_SERVICE_ACCOUNT_KEY_PATH (%s) not found", c.FirebaseServiceAccountKeyPath)
	}
	if strings.TrimSpace(c.FirebaseWebAPIKey) == "" {
		return fmt.Errorf("FATAL: FIREBASE_WEB_API_KEY is not set. Password sign-in requires the Identity Toolkit API key")
	}
	if c.UsesRedisSessions() && strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("FATAL: SESSION_STORE=redis requires REDIS_ADDR")
	}
	if c.ClientIdleTimeout <= 0 {
		return fmt.Errorf("CLIENT_IDLE_TIMEOUT_MINUTES must be positive")
	}
	return nil
}
