package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	AppEnv string

	MongoURI          string
	MongoDB           string
	MongoTransactions bool

	RedisURL       string
	IdempotencyTTL time.Duration

	JWTSecret string
	// TrustGatewayHeaders accepts X-User-ID/X-User-Role set by an upstream gateway.
	TrustGatewayHeaders bool

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeCurrency      string
	PaymentSuccessURL   string
	PaymentCancelURL    string

	FrontendURL    string
	AllowedOrigins []string

	OrderSNSTopicARN string
	AWSUseSecrets    bool

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string
}

// SecretSource resolves a JSON secret into its key/value pairs.
type SecretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

const (
	StripeSecretName = "tomeshelf/STRIPE"
	JWTSecretName    = "tomeshelf/JWT"
)

// Load reads .env (if present) and the process environment. Required settings are
// checked here unless they are expected from Secrets Manager, in which case the caller
// validates after ApplySecrets.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if !cfg.AWSUseSecrets {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func FromEnv() (*Config, error) {
	frontend := strings.TrimSuffix(getEnv("FRONTEND_URL", "http://localhost:5173"), "/")

	ttl, err := time.ParseDuration(getEnv("IDEMPOTENCY_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
	}

	cfg := &Config{
		Port:                getEnv("PORT", "5000"),
		AppEnv:              getEnv("APP_ENV", "development"),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDB:             getEnv("MONGO_DB", "tomeshelf"),
		MongoTransactions:   getBool("MONGO_TRANSACTIONS"),
		RedisURL:            os.Getenv("REDIS_URL"),
		IdempotencyTTL:      ttl,
		JWTSecret:           os.Getenv("JWT_SECRET"),
		TrustGatewayHeaders: getBool("TRUST_GATEWAY_HEADERS"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeCurrency:      strings.ToLower(getEnv("STRIPE_CURRENCY", "inr")),
		PaymentSuccessURL:   getEnv("PAYMENT_SUCCESS_URL", frontend+"/stripe-confirmation"),
		PaymentCancelURL:    getEnv("PAYMENT_CANCEL_URL", frontend+"/cancel"),
		FrontendURL:         frontend,
		OrderSNSTopicARN:    os.Getenv("ORDER_SNS_TOPIC_ARN"),
		AWSUseSecrets:       getBool("AWS_USE_SECRETS"),
		CloudWatchEnabled:   getBool("CLOUDWATCH_ENABLED"),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "TomeShelf"),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/tomeshelf/api"),
	}
	cfg.AllowedOrigins = splitList(getEnv("ALLOWED_ORIGINS", frontend))

	return cfg, nil
}

// ApplySecrets overrides the Stripe keys and JWT secret from Secrets Manager. Keys missing
// from a secret keep their environment value.
func (c *Config) ApplySecrets(ctx context.Context, src SecretSource) error {
	stripeSecret, err := src.GetSecretMap(ctx, StripeSecretName)
	if err != nil {
		return err
	}
	if v := stripeSecret["STRIPE_SECRET_KEY"]; v != "" {
		c.StripeSecretKey = v
	}
	if v := stripeSecret["STRIPE_WEBHOOK_SECRET"]; v != "" {
		c.StripeWebhookSecret = v
	}

	jwtSecret, err := src.GetSecretMap(ctx, JWTSecretName)
	if err != nil {
		return err
	}
	if v := jwtSecret["JWT_SECRET"]; v != "" {
		c.JWTSecret = v
	}
	return nil
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	missing := []string{}
	if c.MongoURI == "" {
		missing = append(missing, "MONGO_URI")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
