package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries every environment-driven setting the service recognizes.
type Config struct {
	Port string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	// Gateway settings. GatewayEnv "sandbox" bypasses all real gateway calls
	// and deterministically reports success.
	GatewayEnv           string
	GatewayProvider      string
	GatewayBaseURL       string // current-generation API base
	GatewayLegacyBaseURL string // legacy signed-payload API base
	GatewayMerchantID    string
	GatewaySecret        string // salt key for the legacy X-VERIFY scheme
	GatewaySaltIndex     string
	GatewayAuthURL       string // optional override, tried before the built-in candidates
	GatewayClientID      string
	GatewayClientSecret  string
	GatewayClientVersion string

	VerifyMaxAttempts int
	VerifyBaseDelay   time.Duration

	KafkaBrokers       string
	PaymentEventsTopic string

	RedisAddr string

	FrontendURL string

	// PublicBaseURL is this service's externally reachable origin, used as the
	// gateway's server-to-server callback target.
	PublicBaseURL string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8087"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Kolkata"),

		GatewayEnv:           getEnv("GATEWAY_ENV", "sandbox"),
		GatewayProvider:      getEnv("GATEWAY_PROVIDER", "phonepe"),
		GatewayBaseURL:       getEnv("GATEWAY_BASE_URL", "https://api.phonepe.com/apis/pg"),
		GatewayLegacyBaseURL: getEnv("GATEWAY_LEGACY_BASE_URL", "https://api.phonepe.com/apis/hermes"),
		GatewayMerchantID:    os.Getenv("GATEWAY_MERCHANT_ID"),
		GatewaySecret:        os.Getenv("GATEWAY_SECRET"),
		GatewaySaltIndex:     getEnv("GATEWAY_SALT_INDEX", "1"),
		GatewayAuthURL:       os.Getenv("GATEWAY_AUTH_URL"),
		GatewayClientID:      os.Getenv("GATEWAY_CLIENT_ID"),
		GatewayClientSecret:  os.Getenv("GATEWAY_CLIENT_SECRET"),
		GatewayClientVersion: getEnv("GATEWAY_CLIENT_VERSION", "1"),

		VerifyMaxAttempts: getEnvInt("VERIFY_MAX_ATTEMPTS", 6),
		VerifyBaseDelay:   time.Duration(getEnvInt("VERIFY_BASE_DELAY_MS", 500)) * time.Millisecond,

		KafkaBrokers:       os.Getenv("KAFKA_BROKERS"),
		PaymentEventsTopic: getEnv("PAYMENT_EVENTS_TOPIC", "payment-events"),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" {
		return nil, fmt.Errorf("missing required POSTGRES_* environment variables")
	}

	if cfg.Production() {
		if cfg.GatewayMerchantID == "" || cfg.GatewaySecret == "" {
			return nil, fmt.Errorf("production gateway credentials not configured")
		}
		if cfg.GatewayMerchantID == "PGTESTPAYUAT" {
			return nil, fmt.Errorf("cannot use test merchant credentials in production mode")
		}
	}

	return cfg, nil
}

// Production reports whether real gateway calls are enabled.
func (c *Config) Production() bool {
	return c.GatewayEnv == "production"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
