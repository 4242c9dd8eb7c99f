// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the bookstore service
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Security SecurityConfig
	Store    StoreConfig
	External ExternalConfig
	Upload   UploadConfig
	Logging  LoggingConfig
	Jobs     JobsConfig
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
	BaseURL     string

	CompanyName    string
	CompanyAddress string
	CompanyEmail   string
	CompanyPhone   string
	CompanyTaxID   string
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	MaxRequestBytes int64
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	LogQueries   bool
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// JWTConfig contains JWT token configuration
type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	BcryptCost            int
	RateLimitPerMinute    int
	DownloadRatePerMinute int
	DownloadBurst         int
	CORSAllowedOrigins    []string
	CORSAllowedMethods    []string
	CORSAllowedHeaders    []string
	TrustedProxies        []string
}

// StoreConfig contains the commercial rules of the store
type StoreConfig struct {
	// TaxRateBasisPoints is the tax rate in hundredths of a percent (1600 = 16%).
	TaxRateBasisPoints   int64
	Currency             string
	PaymentProvider      string
	DeliveryExpiryDays   int
	DeliveryMaxDownloads int
	PendingOrderTTL      time.Duration
	CatalogPageSize      int
	AdminPageSize        int
}

// ExternalConfig contains external service configurations
type ExternalConfig struct {
	Stripe  StripeConfig
	Email   EmailConfig
	Storage StorageConfig
}

// StripeConfig contains Stripe payment configuration
type StripeConfig struct {
	SecretKey        string
	PublishableKey   string
	WebhookSecret    string
	APIBaseURL       string
	SuccessURL       string
	CancelURL        string
	WebhookTolerance time.Duration
}

// EmailConfig contains email service configuration
type EmailConfig struct {
	Provider     string
	APIKey       string
	FromEmail    string
	FromName     string
	ReplyTo      string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPUseTLS   bool
	TemplateDir  string
}

// StorageConfig contains file storage configuration
type StorageConfig struct {
	Provider    string
	LocalPath   string
	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string
	CDNBaseURL  string
}

// UploadConfig contains file upload configuration
type UploadConfig struct {
	MaxBookSize     int64
	MaxImageSize    int64
	BookExtensions  []string
	ImageExtensions []string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// JobsConfig contains scheduler configuration
type JobsConfig struct {
	Enabled             bool
	ExpirePendingOrders string
	DeactivateCoupons   string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	config := &Config{
		App: AppConfig{
			Name:           getEnv("APP_NAME", "Bookstore Backend"),
			Version:        getEnv("APP_VERSION", "1.0.0"),
			Environment:    getEnv("APP_ENV", "development"),
			Debug:          getEnvAsBool("APP_DEBUG", true),
			BaseURL:        getEnv("APP_BASE_URL", "http://localhost:8080"),
			CompanyName:    getEnv("COMPANY_NAME", "Libreria Digital"),
			CompanyAddress: getEnv("COMPANY_ADDRESS", ""),
			CompanyEmail:   getEnv("COMPANY_EMAIL", "support@example.com"),
			CompanyPhone:   getEnv("COMPANY_PHONE", ""),
			CompanyTaxID:   getEnv("COMPANY_TAX_ID", ""),
		},
		Server: ServerConfig{
			Port:            getEnv("APP_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			MaxRequestBytes: getEnvAsInt64("SERVER_MAX_REQUEST_BYTES", 10<<20),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Name:         getEnv("DB_NAME", "bookstore_db"),
			User:         getEnv("DB_USER", "bookstore_user"),
			Password:     getEnv("DB_PASSWORD", "bookstore_password"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 300*time.Second),
			LogQueries:   getEnvAsBool("DB_LOG_QUERIES", false),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "change-me-bookstore-jwt-secret-at-least-32-chars"),
			AccessTokenExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRE", 24*time.Hour),
			RefreshTokenExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRE", 7*24*time.Hour),
		},
		Security: SecurityConfig{
			BcryptCost:            getEnvAsInt("BCRYPT_COST", 12),
			RateLimitPerMinute:    getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
			DownloadRatePerMinute: getEnvAsInt("DOWNLOAD_RATE_PER_MINUTE", 10),
			DownloadBurst:         getEnvAsInt("DOWNLOAD_BURST", 3),
			CORSAllowedOrigins:    getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			CORSAllowedMethods:    getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			CORSAllowedHeaders:    getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Session-ID", "X-Request-ID"}),
			TrustedProxies:        getEnvAsSlice("TRUSTED_PROXIES", []string{}),
		},
		Store: StoreConfig{
			TaxRateBasisPoints:   getEnvAsInt64("TAX_RATE_BPS", 1600),
			Currency:             strings.ToLower(getEnv("STORE_CURRENCY", "mxn")),
			PaymentProvider:      getEnv("PAYMENT_PROVIDER", "simulated"),
			DeliveryExpiryDays:   getEnvAsInt("DELIVERY_EXPIRY_DAYS", 365),
			DeliveryMaxDownloads: getEnvAsInt("DELIVERY_MAX_DOWNLOADS", 3),
			PendingOrderTTL:      getEnvAsDuration("ORDER_PENDING_TTL", 24*time.Hour),
			CatalogPageSize:      getEnvAsInt("CATALOG_PAGE_SIZE", 12),
			AdminPageSize:        getEnvAsInt("ADMIN_PAGE_SIZE", 20),
		},
		External: ExternalConfig{
			Stripe: StripeConfig{
				SecretKey:        getEnv("STRIPE_SECRET_KEY", ""),
				PublishableKey:   getEnv("STRIPE_PUBLISHABLE_KEY", ""),
				WebhookSecret:    getEnv("STRIPE_WEBHOOK_SECRET", ""),
				APIBaseURL:       getEnv("STRIPE_API_BASE_URL", "https://api.stripe.com"),
				SuccessURL:       getEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/orders/{ORDER_NUMBER}/success"),
				CancelURL:        getEnv("STRIPE_CANCEL_URL", "http://localhost:3000/cart"),
				WebhookTolerance: getEnvAsDuration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
			},
			Email: EmailConfig{
				Provider:     getEnv("EMAIL_PROVIDER", "log"),
				APIKey:       getEnv("EMAIL_API_KEY", ""),
				FromEmail:    getEnv("FROM_EMAIL", "noreply@example.com"),
				FromName:     getEnv("FROM_NAME", "Libreria Digital"),
				ReplyTo:      getEnv("REPLY_TO_EMAIL", ""),
				SMTPHost:     getEnv("SMTP_HOST", ""),
				SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
				SMTPUsername: getEnv("SMTP_USERNAME", ""),
				SMTPPassword: getEnv("SMTP_PASSWORD", ""),
				SMTPUseTLS:   getEnvAsBool("SMTP_USE_TLS", true),
				TemplateDir:  getEnv("EMAIL_TEMPLATE_DIR", ""),
			},
			Storage: StorageConfig{
				Provider:    getEnv("STORAGE_PROVIDER", "local"),
				LocalPath:   getEnv("STORAGE_LOCAL_PATH", "./storage"),
				S3Bucket:    getEnv("S3_BUCKET", ""),
				S3Region:    getEnv("S3_REGION", "us-east-1"),
				S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
				S3SecretKey: getEnv("S3_SECRET_KEY", ""),
				S3Endpoint:  getEnv("S3_ENDPOINT", ""),
				CDNBaseURL:  getEnv("CDN_BASE_URL", ""),
			},
		},
		Upload: UploadConfig{
			MaxBookSize:     getEnvAsInt64("UPLOAD_MAX_BOOK_SIZE", 200<<20),
			MaxImageSize:    getEnvAsInt64("UPLOAD_MAX_IMAGE_SIZE", 5<<20),
			BookExtensions:  getEnvAsSlice("UPLOAD_BOOK_EXTENSIONS", []string{"pdf", "epub", "mobi"}),
			ImageExtensions: getEnvAsSlice("UPLOAD_IMAGE_EXTENSIONS", []string{"jpg", "jpeg", "png", "webp"}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "debug"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Jobs: JobsConfig{
			Enabled:             getEnvAsBool("JOBS_ENABLED", true),
			ExpirePendingOrders: getEnv("JOB_EXPIRE_PENDING_ORDERS", "@every 15m"),
			DeactivateCoupons:   getEnv("JOB_DEACTIVATE_COUPONS", "@hourly"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("APP_PORT is required")
	}

	if c.Store.TaxRateBasisPoints < 0 || c.Store.TaxRateBasisPoints > 10000 {
		return fmt.Errorf("TAX_RATE_BPS must be between 0 and 10000")
	}
	if c.Store.DeliveryExpiryDays <= 0 {
		return fmt.Errorf("DELIVERY_EXPIRY_DAYS must be positive")
	}
	if c.Store.DeliveryMaxDownloads <= 0 {
		return fmt.Errorf("DELIVERY_MAX_DOWNLOADS must be positive")
	}

	switch c.Store.PaymentProvider {
	case "simulated":
	case "stripe":
		if c.External.Stripe.SecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required when PAYMENT_PROVIDER=stripe")
		}
		if c.External.Stripe.WebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when PAYMENT_PROVIDER=stripe")
		}
	default:
		return fmt.Errorf("unsupported PAYMENT_PROVIDER %q", c.Store.PaymentProvider)
	}

	switch c.External.Storage.Provider {
	case "local":
		if c.External.Storage.LocalPath == "" {
			return fmt.Errorf("STORAGE_LOCAL_PATH is required for local storage")
		}
	case "s3":
		if c.External.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_PROVIDER=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_PROVIDER %q", c.External.Storage.Provider)
	}

	switch c.External.Email.Provider {
	case "log", "smtp":
	case "resend", "sendgrid", "mailersend":
		if c.External.Email.APIKey == "" {
			return fmt.Errorf("EMAIL_API_KEY is required when EMAIL_PROVIDER=%s", c.External.Email.Provider)
		}
	default:
		return fmt.Errorf("unsupported EMAIL_PROVIDER %q", c.External.Email.Provider)
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// DeliveryExpiry returns the lifetime of a download link
func (c *Config) DeliveryExpiry() time.Duration {
	return time.Duration(c.Store.DeliveryExpiryDays) * 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
