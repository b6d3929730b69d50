package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process configuration read from the environment (and an optional .env file).
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFormat   string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret      string
	AllowedOrigins string

	BodyLimitBytes  int
	RateLimitMax    int
	RateLimitWindow time.Duration

	StripeWebhookSecret string

	InvoicePrefix  string
	ProposalPrefix string
}

// Load reads the configuration. A missing .env file is not an error.
func Load() Config {
	_ = godotenv.Load()

	// Fiber's default BodyLimit is 4MB; BODY_LIMIT_BYTES wins over BODY_LIMIT_MB.
	bodyLimit := getenvInt("BODY_LIMIT_BYTES", 0)
	if bodyLimit <= 0 {
		bodyLimit = getenvInt("BODY_LIMIT_MB", 4) * 1024 * 1024
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET_KEY"))
	if jwtSecret == "" {
		jwtSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
	}

	return Config{
		Port:        getenv("PORT", "8080"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "json"),

		DBHost:     getenv("DB_HOST", "db"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBUser:     getenv("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getenv("DB_NAME", "billing"),
		DBSSLMode:  getenv("DB_SSLMODE", "disable"),

		JWTSecret:      jwtSecret,
		AllowedOrigins: getenv("ALLOWED_ORIGINS", "*"),

		BodyLimitBytes:  bodyLimit,
		RateLimitMax:    getenvInt("RATE_LIMIT_MAX", 60),
		RateLimitWindow: time.Duration(getenvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,

		StripeWebhookSecret: strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),

		InvoicePrefix:  strings.ToUpper(getenv("INVOICE_NUMBER_PREFIX", "INV")),
		ProposalPrefix: strings.ToUpper(getenv("PROPOSAL_NUMBER_PREFIX", "PRO")),
	}
}

// IsProduction reports whether the process runs with ENVIRONMENT=production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getenvInt reads an int env var with a default fallback.
func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}
