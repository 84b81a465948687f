package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	environment := GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		// Default to info level for other environments
		log.SetLevel(logrus.InfoLevel)
	}
}

// DocuSign environments
const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

// Development-only secrets; LoadConfig refuses them in any other APP_ENV
const (
	defaultJWTSecret         = "secret"
	defaultSigningLinkSecret = "signing-link-secret"
)

// State store drivers
const (
	StateStoreMemory = "memory"
	StateStoreRedis  = "redis"
)

// Config used for the application configuration, loading the input from environment variables
type Config struct {
	AppEnv string `json:"app_env"`

	// Server Configuration
	Port    int    `json:"port"`
	Host    string `json:"host"`
	BaseURL string `json:"base_url"` // externally reachable, used for redirect URI and signing links

	// Database configuration
	DBDriver   string `json:"db_driver"`
	DBHost     string `json:"db_host"`
	DBPort     string `json:"db_port"`
	DBName     string `json:"db_name"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBSSLMode  string `json:"db_sslmode"`
	DBPath     string `json:"db_path"`

	// Logging configuration
	LogLevel string `json:"log_level"`

	// Security Configuration
	JWTSecret          string `json:"jwt_secret"`
	TokenEncryptionKey string `json:"token_encryption_key"`

	// DocuSign integration
	DocuSign DocuSignConfig `json:"docusign"`

	// Signing links and envelope notification policy
	Signing SigningConfig `json:"signing"`

	// OAuth state store
	StateStore    string `json:"state_store"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	// Outbound email
	SMTP SMTPConfig `json:"smtp"`

	MetricsEnabled bool `json:"metrics_enabled"`
}

// DocuSignConfig holds the OAuth client and account settings for DocuSign
type DocuSignConfig struct {
	IntegrationKey string        `json:"integration_key"`
	ClientSecret   string        `json:"client_secret"`
	UserID         string        `json:"user_id"`
	AccountID      string        `json:"account_id"`
	Environment    string        `json:"environment"`
	OAuthBaseURL   string        `json:"oauth_base_url"`
	APIBaseURL     string        `json:"api_base_url"` // optional, overrides the base URI reported by userinfo
	Scopes         []string      `json:"scopes"`
	WebhookSecret  string        `json:"webhook_secret"`
	Timeout        time.Duration `json:"timeout"`
	RefreshMargin  time.Duration `json:"refresh_margin"`
	RetentionDays  int           `json:"retention_days"`
}

// SigningConfig controls signing links and envelope notifications
type SigningConfig struct {
	LinkSecret            string        `json:"link_secret"`
	LinkTTL               time.Duration `json:"link_ttl"`
	ReturnURL             string        `json:"return_url"`
	SuppressProviderEmail bool          `json:"suppress_provider_email"`
	ReminderDelayDays     int           `json:"reminder_delay_days"`
	ReminderFrequencyDays int           `json:"reminder_frequency_days"`
	ExpireAfterDays       int           `json:"expire_after_days"`
	ExpireWarnDays        int           `json:"expire_warn_days"`
}

// SMTPConfig holds the outbound mail server settings
type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// Enabled reports whether an SMTP server is configured
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

// RedirectURL is the OAuth callback registered with DocuSign
func (c *Config) RedirectURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/api/docusign/callback"
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, Host: %s, BaseURL: %s, DBDriver: %s, DBHost: %s, DBName: %s, DBUser: %s, DBPassword: [REDACTED], LogLevel: %s, JWTSecret: [REDACTED], "+
		"DocuSign: {IntegrationKey: %s, ClientSecret: [REDACTED], AccountID: %s, Environment: %s, OAuthBaseURL: %s}, StateStore: %s, RedisAddr: %s, SMTPHost: %s}",
		c.Port, c.Host, c.BaseURL, c.DBDriver, c.DBHost, c.DBName, c.DBUser, c.LogLevel,
		maskKey(c.DocuSign.IntegrationKey), c.DocuSign.AccountID, c.DocuSign.Environment, c.DocuSign.OAuthBaseURL,
		c.StateStore, c.RedisAddr, c.SMTP.Host)
}

// maskKey keeps only the first characters of an identifier
func maskKey(key string) string {
	if len(key) <= 8 {
		return "[REDACTED]"
	}
	return key[:8] + "..."
}

// OAuthBaseURLFor returns the DocuSign account server for an environment
func OAuthBaseURLFor(environment string) string {
	if environment == EnvironmentProduction {
		return "https://account.docusign.com"
	}
	return "https://account-d.docusign.com"
}

// LoadConfig read the proper configuration from environment variables and returns a Config struct
// It validates the DocuSign environment selector and the externally reachable base URL
// Returns an error if any required environment variable is missing or invalid
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")
	port, err := strconv.Atoi(GetEnvWithDefault("APP_PORT", "8080"))
	if err != nil {
		return nil, err
	}

	baseURL := GetEnvWithDefault("BASE_URL", fmt.Sprintf("http://localhost:%d", port))
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid BASE_URL format: %s", baseURL)
	}

	environment := strings.ToLower(GetEnvWithDefault("DOCUSIGN_ENVIRONMENT", EnvironmentSandbox))
	if environment != EnvironmentSandbox && environment != EnvironmentProduction {
		return nil, fmt.Errorf("DOCUSIGN_ENVIRONMENT must be %q or %q, got %q", EnvironmentSandbox, EnvironmentProduction, environment)
	}

	stateStore := strings.ToLower(GetEnvWithDefault("STATE_STORE", StateStoreMemory))
	if stateStore != StateStoreMemory && stateStore != StateStoreRedis {
		return nil, fmt.Errorf("unsupported STATE_STORE: %s (supported: memory, redis)", stateStore)
	}
	if stateStore == StateStoreRedis && os.Getenv("REDIS_ADDR") == "" {
		return nil, errors.New("REDIS_ADDR environment variable is required when STATE_STORE=redis")
	}

	config := &Config{
		AppEnv:  GetEnvWithDefault("APP_ENV", "development"),
		Port:    port,
		Host:    GetEnvWithDefault("APP_HOST", "localhost"),
		BaseURL: strings.TrimRight(baseURL, "/"),

		DBDriver:   GetEnvWithDefault("DB_DRIVER", "sqlite"),
		DBHost:     GetEnvWithDefault("DB_HOST", "localhost"),
		DBPort:     GetEnvWithDefault("DB_PORT", "5432"),
		DBName:     GetEnvWithDefault("DB_NAME", "signflow"),
		DBUser:     GetEnvWithDefault("DB_USER", "user"),
		DBPassword: GetEnvWithDefault("DB_PASSWORD", "password"),
		DBSSLMode:  GetEnvWithDefault("DB_SSLMODE", "disable"),
		DBPath:     GetEnvWithDefault("DB_PATH", "signflow.sqlite"),

		LogLevel:           GetEnvWithDefault("LOG_LEVEL", "info"),
		JWTSecret:          GetEnvWithDefault("JWT_SECRET", defaultJWTSecret),
		TokenEncryptionKey: os.Getenv("TOKEN_ENCRYPTION_KEY"),

		DocuSign: DocuSignConfig{
			IntegrationKey: os.Getenv("DOCUSIGN_INTEGRATION_KEY"),
			ClientSecret:   os.Getenv("DOCUSIGN_CLIENT_SECRET"),
			UserID:         os.Getenv("DOCUSIGN_USER_ID"),
			AccountID:      os.Getenv("DOCUSIGN_ACCOUNT_ID"),
			Environment:    environment,
			OAuthBaseURL:   strings.TrimRight(GetEnvWithDefault("DOCUSIGN_OAUTH_BASE_URL", OAuthBaseURLFor(environment)), "/"),
			APIBaseURL:     strings.TrimRight(os.Getenv("DOCUSIGN_API_BASE_URL"), "/"),
			Scopes:         strings.Fields(GetEnvWithDefault("DOCUSIGN_SCOPES", "signature extended")),
			WebhookSecret:  os.Getenv("DOCUSIGN_WEBHOOK_SECRET"),
			Timeout:        GetEnvAsType("DOCUSIGN_TIMEOUT", 30*time.Second),
			RefreshMargin:  GetEnvAsType("TOKEN_REFRESH_MARGIN", 5*time.Minute),
			RetentionDays:  GetEnvAsType("TOKEN_RETENTION_DAYS", 90),
		},

		Signing: SigningConfig{
			LinkSecret:            GetEnvWithDefault("SIGNING_LINK_SECRET", defaultSigningLinkSecret),
			LinkTTL:               GetEnvAsType("SIGNING_LINK_TTL", 365*24*time.Hour),
			ReturnURL:             GetEnvWithDefault("SIGNING_RETURN_URL", strings.TrimRight(baseURL, "/")+"/signing-complete"),
			SuppressProviderEmail: GetEnvAsType("SUPPRESS_PROVIDER_EMAIL", true),
			ReminderDelayDays:     GetEnvAsType("REMINDER_DELAY_DAYS", 2),
			ReminderFrequencyDays: GetEnvAsType("REMINDER_FREQUENCY_DAYS", 2),
			ExpireAfterDays:       GetEnvAsType("EXPIRE_AFTER_DAYS", 365),
			ExpireWarnDays:        GetEnvAsType("EXPIRE_WARN_DAYS", 7),
		},

		StateStore:    stateStore,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       GetEnvAsType("REDIS_DB", 0),

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     GetEnvAsType("SMTP_PORT", 587),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},

		MetricsEnabled: GetEnvAsType("METRICS_ENABLED", true),
	}

	if config.DocuSign.IntegrationKey == "" || config.DocuSign.ClientSecret == "" {
		log.Warn("DOCUSIGN_INTEGRATION_KEY or DOCUSIGN_CLIENT_SECRET not set, DocuSign authorization will fail")
	}
	if config.DocuSign.RefreshMargin < 0 {
		return nil, errors.New("TOKEN_REFRESH_MARGIN must not be negative")
	}
	if err := config.validateSecrets(); err != nil {
		return nil, err
	}

	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

// validateSecrets rejects missing or built-in signing secrets outside development
func (c *Config) validateSecrets() error {
	secrets := []struct {
		name, value, fallback string
	}{
		{"JWT_SECRET", c.JWTSecret, defaultJWTSecret},
		{"SIGNING_LINK_SECRET", c.Signing.LinkSecret, defaultSigningLinkSecret},
	}
	for _, secret := range secrets {
		if strings.TrimSpace(secret.value) != "" && secret.value != secret.fallback {
			continue
		}
		if c.AppEnv != "development" {
			return fmt.Errorf("%s must be set to a non-default value when APP_ENV=%s", secret.name, c.AppEnv)
		}
		log.Warnf("%s is not set, using the development default", secret.name)
	}
	return nil
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Debugf("Environment variable %s not set, using default value", key)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return any(boolValue).(T)
	case time.Duration:
		duration, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return any(duration).(T)
	default:
		return defaultValue // Fallback for unsupported types
	}
}
