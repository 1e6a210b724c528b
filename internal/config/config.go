// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Gateway     GatewayConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey       string
	AccessTokenTTL  int // in hours
	RefreshTokenTTL int // in hours
}

// GatewayConfig holds the bank-transfer gateway integration settings.
// Loaded once at startup and injected into the payment service; business
// logic never reads the environment directly.
type GatewayConfig struct {
	Enabled        bool
	APIKey         string // bearer key for the transaction listing API
	WebhookSecret  string // HMAC secret for webhook signatures, optional
	WebhookAPIKey  string // static key accepted in the webhook auth header
	BankAccount    string
	BankName       string
	AccountName    string
	VirtualAccount string // optional routing prefix shown before the code
	APIBaseURL     string
	QRBaseURL      string
	PaymentTimeout  int   // seconds a pending gateway payment stays payable
	AmountTolerance int64 // absolute tolerance in minor currency units
	ListLimit       int   // how many gateway transactions the poller scans
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "docmarket"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL:  getEnvAsInt("JWT_ACCESS_TTL", 24),   // 24 hours
			RefreshTokenTTL: getEnvAsInt("JWT_REFRESH_TTL", 168), // 7 days
		},
		Gateway: GatewayConfig{
			Enabled:        getEnvAsBool("GATEWAY_ENABLED", true),
			APIKey:         getEnv("GATEWAY_API_KEY", ""),
			WebhookSecret:  getEnv("GATEWAY_WEBHOOK_SECRET", ""),
			WebhookAPIKey:  getEnv("GATEWAY_WEBHOOK_API_KEY", ""),
			BankAccount:    getEnv("GATEWAY_BANK_ACCOUNT", ""),
			BankName:       getEnv("GATEWAY_BANK_NAME", "VCB"),
			AccountName:    getEnv("GATEWAY_ACCOUNT_NAME", "DOC MARKET"),
			VirtualAccount: getEnv("GATEWAY_VIRTUAL_ACCOUNT", ""),
			APIBaseURL:     getEnv("GATEWAY_API_BASE_URL", "https://my.sepay.vn/userapi"),
			QRBaseURL:      getEnv("GATEWAY_QR_BASE_URL", "https://qr.sepay.vn/img"),
			PaymentTimeout:  getEnvAsInt("GATEWAY_PAYMENT_TIMEOUT", 900), // 15 minutes
			AmountTolerance: int64(getEnvAsInt("GATEWAY_AMOUNT_TOLERANCE", 1000)),
			ListLimit:       getEnvAsInt("GATEWAY_LIST_LIMIT", 20),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Gateway.Enabled && c.Environment == "production" {
		if c.Gateway.WebhookSecret == "" && c.Gateway.WebhookAPIKey == "" {
			return fmt.Errorf("gateway webhook authentication is required in production")
		}
	}

	return nil
}

// Helper functions
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
