package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	awspkg "hardline-backend/pkg/aws"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	AppEnv string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	RedisURL string
	CartTTL  time.Duration

	StripeSecretKey  string
	StripeWebhookKey string
	StripeCurrency   string
	FrontendURL      string

	JWTSecret      string
	AllowedOrigins []string

	OrderEventsTopicARN string // SNS topic for order/chat events
	OrderEventsQueueURL string // SQS queue subscribed to the topic

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string

	StrictTransitions bool

	ReconcileAttempts  int
	ReconcileBaseDelay time.Duration
	ReconcileMaxDelay  time.Duration
	ReconcileMaxWait   time.Duration

	RateLimitPerMinute int
	RateLimitBurst     int
	RequestTimeout     time.Duration
}

// LoadConfig reads the process environment (and an optional .env file),
// then overlays secrets from AWS Secrets Manager when AWS_USE_SECRETS=true.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CartTTL:  getDuration("CART_TTL", 7*24*time.Hour),

		StripeSecretKey:  os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeCurrency:   strings.ToLower(getEnv("STRIPE_CURRENCY", "usd")),
		FrontendURL:      strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),

		OrderEventsTopicARN: os.Getenv("ORDER_EVENTS_TOPIC_ARN"),
		OrderEventsQueueURL: os.Getenv("ORDER_EVENTS_QUEUE_URL"),

		CloudWatchEnabled:   getBool("CLOUDWATCH_ENABLED", false),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Hardline/Checkout"),
		CloudWatchLogGroup:  os.Getenv("CLOUDWATCH_LOG_GROUP"),

		StrictTransitions: getBool("ORDER_STRICT_TRANSITIONS", false),

		ReconcileAttempts:  getInt("RECONCILE_ATTEMPTS", 5),
		ReconcileBaseDelay: getDuration("RECONCILE_BASE_DELAY", 500*time.Millisecond),
		ReconcileMaxDelay:  getDuration("RECONCILE_MAX_DELAY", 4*time.Second),
		ReconcileMaxWait:   getDuration("RECONCILE_MAX_WAIT", 10*time.Second),

		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitBurst:     getInt("RATE_LIMIT_BURST", 30),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if err := cfg.overlaySecrets(context.Background()); err != nil {
			return nil, fmt.Errorf("load secrets: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlaySecrets(ctx context.Context) error {
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		return err
	}
	sm := awspkg.NewSecretsClient(awsCfg)

	db, err := secretMap(ctx, sm, getEnv("DB_SECRET_NAME", "hardline/DB_CREDENTIALS"))
	if err != nil {
		return err
	}
	setIf(&c.PostgresUser, db["POSTGRES_USER"])
	setIf(&c.PostgresPassword, db["POSTGRES_PASSWORD"])
	setIf(&c.PostgresDB, db["POSTGRES_DB"])
	setIf(&c.PostgresHost, db["POSTGRES_HOST"])
	setIf(&c.PostgresPort, db["POSTGRES_PORT"])

	st, err := secretMap(ctx, sm, getEnv("STRIPE_SECRET_NAME", "hardline/STRIPE"))
	if err != nil {
		return err
	}
	setIf(&c.StripeSecretKey, st["STRIPE_API_KEY"])
	setIf(&c.StripeWebhookKey, st["STRIPE_WEBHOOK_SECRET"])

	jwt, err := sm.GetSecret(ctx, getEnv("JWT_SECRET_NAME", "hardline/JWT_SECRET"))
	if err != nil && !errors.Is(err, awspkg.ErrSecretNotFound) {
		return err
	}
	setIf(&c.JWTSecret, jwt)
	return nil
}

// secretMap treats a missing secret as empty so env values stay in effect.
func secretMap(ctx context.Context, sm *awspkg.SecretsClient, name string) (map[string]string, error) {
	m, err := sm.GetSecretMap(ctx, name)
	if errors.Is(err, awspkg.ErrSecretNotFound) {
		return map[string]string{}, nil
	}
	return m, err
}

func (c *Config) validate() error {
	var missing []string
	for name, v := range map[string]string{
		"POSTGRES_USER":         c.PostgresUser,
		"POSTGRES_PASSWORD":     c.PostgresPassword,
		"POSTGRES_DB":           c.PostgresDB,
		"STRIPE_API_KEY":        c.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": c.StripeWebhookKey,
		"JWT_SECRET":            c.JWTSecret,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.ReconcileAttempts < 1 {
		return fmt.Errorf("RECONCILE_ATTEMPTS must be at least 1")
	}
	if c.ReconcileMaxWait < c.ReconcileBaseDelay {
		return fmt.Errorf("RECONCILE_MAX_WAIT must not be shorter than RECONCILE_BASE_DELAY")
	}
	return nil
}

// DSN is the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

// EventsBridgeEnabled reports whether realtime events travel over SNS/SQS.
func (c *Config) EventsBridgeEnabled() bool {
	return c.OrderEventsTopicARN != "" && c.OrderEventsQueueURL != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

