package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Order store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Payment providers.
const (
	ProviderFlutterwave = "flutterwave"
	ProviderPaystack    = "paystack"
	ProviderDemo        = "demo"
)

// Rate limiter backends.
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

const minSigningKeyLength = 16

// Config holds all application configuration.
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Logger      LoggerConfig
	Auth        AuthConfig
	S3          S3Config
	Store       StoreConfig
	Payment     PaymentConfig
	Email       EmailConfig
	RateLimit   RateLimitConfig
	Redis       RedisConfig
	Events      EventsConfig
	Catalog     CatalogConfig
	Download    DownloadConfig
	Checkout    CheckoutConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration for the admin routes.
type AuthConfig struct {
	APIKey string
}

// S3Config holds AWS S3 configuration for the order snapshot.
type S3Config struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string // Path prefix within bucket (e.g., "snapshots/")
}

// StoreConfig selects the primary order repository and the snapshot cache.
type StoreConfig struct {
	Backend         string // memory, postgres or sqlite
	SQLitePath      string
	SnapshotEnabled bool
	SnapshotPath    string
}

// PaymentConfig holds payment provider credentials.
type PaymentConfig struct {
	Provider    string
	DemoMode    bool
	PublicKey   string
	SecretKey   string
	BaseURL     string
	RedirectURL string
	Timeout     time.Duration
	DemoDelay   time.Duration
}

// EmailConfig holds mail API configuration. An empty APIKey selects the
// log-only dispatcher.
type EmailConfig struct {
	APIKey      string
	FromAddress string
	FromName    string
	BaseURL     string
	RatePerSec  float64
}

// RateLimitConfig holds checkout throttling configuration.
type RateLimitConfig struct {
	Backend       string
	MaxRequests   int
	Window        time.Duration
	MaxKeys       int
	SweepInterval time.Duration
	// TrustedProxies lists peers allowed to set X-Forwarded-For.
	TrustedProxies []string
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// EventsConfig holds RabbitMQ configuration. An empty URL disables publishing.
type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

// CatalogConfig points at the product catalog. An empty path uses the
// embedded catalog.
type CatalogConfig struct {
	Path string
}

// DownloadConfig holds signed download link configuration.
type DownloadConfig struct {
	SigningKey    string
	TTL           time.Duration
	PublicBaseURL string

	// Product files are served from FilesBucket via presigned S3 URLs when
	// set, otherwise relative file paths are joined onto FilesBaseURL.
	FilesBaseURL   string
	FilesBucket    string
	PresignExpires time.Duration
}

// CheckoutConfig holds checkout attempt configuration.
type CheckoutConfig struct {
	AttemptTTL    time.Duration
	SweepInterval time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "digistore"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		S3: S3Config{
			Enabled: getEnvAsBool("S3_ENABLED", false),
			Bucket:  getEnv("S3_BUCKET", ""),
			Region:  getEnv("S3_REGION", "eu-west-1"),
			Prefix:  getEnv("S3_PREFIX", "snapshots/"),
		},
		Store: StoreConfig{
			Backend:         getEnv("ORDER_STORE", StoreMemory),
			SQLitePath:      getEnv("SQLITE_PATH", "digistore.db"),
			SnapshotEnabled: getEnvAsBool("SNAPSHOT_ENABLED", true),
			SnapshotPath:    getEnv("SNAPSHOT_PATH", "data/orders.json.gz"),
		},
		Payment: PaymentConfig{
			Provider:    getEnv("PAYMENT_PROVIDER", ProviderFlutterwave),
			DemoMode:    getEnvAsBool("DEMO_MODE", false),
			PublicKey:   getEnv("PAYMENT_PUBLIC_KEY", ""),
			SecretKey:   getEnv("PAYMENT_SECRET_KEY", ""),
			BaseURL:     getEnv("PAYMENT_BASE_URL", ""),
			RedirectURL: getEnv("PAYMENT_REDIRECT_URL", "http://localhost:8080/payment/complete"),
			Timeout:     getEnvAsDuration("GATEWAY_TIMEOUT", 15*time.Second),
			DemoDelay:   getEnvAsDuration("DEMO_DELAY", 3*time.Second),
		},
		Email: EmailConfig{
			APIKey:      getEnv("EMAIL_API_KEY", ""),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@digistore.ng"),
			FromName:    getEnv("EMAIL_FROM_NAME", "DigiStore"),
			BaseURL:     getEnv("EMAIL_BASE_URL", "https://api.sendgrid.com/v3"),
			RatePerSec:  getEnvAsFloat("EMAIL_RATE_PER_SEC", 5),
		},
		RateLimit: RateLimitConfig{
			Backend:       getEnv("RATE_LIMIT_BACKEND", RateLimitMemory),
			MaxRequests:   getEnvAsInt("RATE_LIMIT_MAX", 5),
			Window:        getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			MaxKeys:       getEnvAsInt("RATE_LIMIT_MAX_KEYS", 100_000),
			SweepInterval:  getEnvAsDuration("RATE_LIMIT_SWEEP_INTERVAL", time.Minute),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Events: EventsConfig{
			AMQPURL:  getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "digistore.orders"),
		},
		Catalog: CatalogConfig{
			Path: getEnv("CATALOG_PATH", ""),
		},
		Download: DownloadConfig{
			SigningKey:    getEnv("DOWNLOAD_SIGNING_KEY", ""),
			TTL:           getEnvAsDuration("DOWNLOAD_TTL", 30*24*time.Hour),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

			FilesBaseURL:   getEnv("DOWNLOAD_FILES_BASE_URL", "http://localhost:8080/files"),
			FilesBucket:    getEnv("DOWNLOAD_FILES_BUCKET", ""),
			PresignExpires: getEnvAsDuration("DOWNLOAD_PRESIGN_EXPIRES", 15*time.Minute),
		},
		Checkout: CheckoutConfig{
			AttemptTTL:    getEnvAsDuration("CHECKOUT_ATTEMPT_TTL", time.Hour),
			SweepInterval: getEnvAsDuration("CHECKOUT_SWEEP_INTERVAL", 5*time.Minute),
		},
	}

	if cfg.Payment.DemoMode && os.Getenv("PAYMENT_PROVIDER") == "" {
		cfg.Payment.Provider = ProviderDemo
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the server handles real money.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if err := c.Database.Validate(); err != nil {
			return err
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required when ORDER_STORE is sqlite")
		}
	default:
		return fmt.Errorf("invalid order store: %s (must be memory, postgres, or sqlite)", c.Store.Backend)
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when S3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("S3 region is required when S3 is enabled")
		}
	}

	switch c.Payment.Provider {
	case ProviderFlutterwave, ProviderPaystack:
		if c.Payment.SecretKey == "" {
			return fmt.Errorf("payment secret key is required for provider %s", c.Payment.Provider)
		}
	case ProviderDemo:
		if c.IsProduction() {
			return fmt.Errorf("demo payment provider is not allowed in production")
		}
	default:
		return fmt.Errorf("invalid payment provider: %s (must be flutterwave, paystack, or demo)", c.Payment.Provider)
	}

	if c.Payment.DemoMode && c.Payment.Provider != ProviderDemo {
		return fmt.Errorf("demo mode conflicts with payment provider %s (unset one of DEMO_MODE or PAYMENT_PROVIDER)", c.Payment.Provider)
	}

	if c.Payment.Timeout <= 0 {
		return fmt.Errorf("gateway timeout must be positive")
	}

	if c.Email.RatePerSec <= 0 {
		return fmt.Errorf("email rate must be positive")
	}

	switch c.RateLimit.Backend {
	case RateLimitMemory, RateLimitRedis:
	default:
		return fmt.Errorf("invalid rate limit backend: %s (must be memory or redis)", c.RateLimit.Backend)
	}

	if c.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("rate limit max must be at least 1")
	}

	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}

	for _, proxy := range c.RateLimit.TrustedProxies {
		if _, err := netip.ParsePrefix(proxy); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(proxy); err != nil {
			return fmt.Errorf("invalid trusted proxy: %s (must be an IP address or CIDR range)", proxy)
		}
	}

	if len(c.Download.SigningKey) < minSigningKeyLength {
		return fmt.Errorf("download signing key must be at least %d characters", minSigningKeyLength)
	}

	if c.Download.TTL <= 0 {
		return fmt.Errorf("download TTL must be positive")
	}

	if c.Download.FilesBucket == "" && c.Download.FilesBaseURL == "" {
		return fmt.Errorf("download files base URL or bucket is required")
	}

	if c.Download.FilesBucket != "" && c.Download.PresignExpires <= 0 {
		return fmt.Errorf("download presign expiry must be positive")
	}

	return nil
}

// Validate validates the PostgreSQL settings.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Port)
	}

	if c.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.MinConnections > c.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsList retrieves a comma-separated environment variable, dropping
// blank entries.
func getEnvAsList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration (e.g. "15s")
// or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
