package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// DeadlineBackend selects which durable timer service fires deadlines.
type DeadlineBackend string

const (
	DeadlineBackendPostgres DeadlineBackend = "postgres"
	DeadlineBackendTemporal DeadlineBackend = "temporal"
	DeadlineBackendMemory   DeadlineBackend = "memory"
)

type Config struct {
	Env      string
	HTTPAddr string

	DB DBConfig

	Policy PolicyConfig

	Stripe StripeConfig
	Ship24 Ship24Config

	RedisAddr    string
	RedisChannel string

	Deadlines DeadlineConfig
	Temporal  TemporalConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the postgres url used by both pgxpool and golang-migrate.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// PolicyConfig holds marketplace business policy injected into aggregates.
type PolicyConfig struct {
	RefundDeadlineDays int
	CommissionRate     decimal.Decimal
}

// RefundPeriod is the time a seller has to ship after funds are reserved.
func (p PolicyConfig) RefundPeriod() time.Duration {
	return time.Duration(p.RefundDeadlineDays) * 24 * time.Hour
}

type StripeConfig struct {
	APIKey            string
	PlatformAccountID string
	Currency          string
}

type Ship24Config struct {
	APIKey        string
	BaseURL       string
	WebhookSecret string
}

type DeadlineConfig struct {
	Backend      DeadlineBackend
	PollInterval time.Duration
	BatchSize    int
}

type TemporalConfig struct {
	Address   string
	Namespace string
	TaskQueue string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	rate, err := decimal.NewFromString(getenv("POLICY_COMMISSION_RATE", "0.10"))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid POLICY_COMMISSION_RATE: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Config{}, fmt.Errorf("config: POLICY_COMMISSION_RATE must be in [0, 1), got %s", rate)
	}

	refundDays, err := strconv.Atoi(getenv("POLICY_REFUND_DEADLINE_DAYS", "14"))
	if err != nil || refundDays <= 0 {
		return Config{}, fmt.Errorf("config: POLICY_REFUND_DEADLINE_DAYS must be a positive integer")
	}

	poll, err := time.ParseDuration(getenv("DEADLINE_POLL_INTERVAL", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid DEADLINE_POLL_INTERVAL: %w", err)
	}

	batch, err := strconv.Atoi(getenv("DEADLINE_BATCH_SIZE", "50"))
	if err != nil || batch <= 0 {
		return Config{}, fmt.Errorf("config: DEADLINE_BATCH_SIZE must be a positive integer")
	}

	backend := DeadlineBackend(strings.ToLower(getenv("DEADLINE_BACKEND", string(DeadlineBackendPostgres))))
	switch backend {
	case DeadlineBackendPostgres, DeadlineBackendTemporal, DeadlineBackendMemory:
	default:
		return Config{}, fmt.Errorf("config: unknown DEADLINE_BACKEND %q", backend)
	}

	return Config{
		Env:      getenv("APP_ENV", "development"),
		HTTPAddr: getenv("HTTP_ADDR", ":9000"),
		DB: DBConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     os.Getenv("DB_PORT"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			SSLMode:  getenv("DB_SSLMODE", "disable"),
		},
		Policy: PolicyConfig{
			RefundDeadlineDays: refundDays,
			CommissionRate:     rate,
		},
		Stripe: StripeConfig{
			APIKey:            os.Getenv("STRIPE_API_KEY"),
			PlatformAccountID: os.Getenv("STRIPE_PLATFORM_ACCOUNT_ID"),
			Currency:          getenv("STRIPE_CURRENCY", "czk"),
		},
		Ship24: Ship24Config{
			APIKey:        os.Getenv("SHIP24_API_KEY"),
			BaseURL:       getenv("SHIP24_BASE_URL", "https://api.ship24.com/public/v1"),
			WebhookSecret: os.Getenv("SHIP24_WEBHOOK_SECRET"),
		},
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisChannel: getenv("REDIS_CHANNEL", "marketplace.events"),
		Deadlines: DeadlineConfig{
			Backend:      backend,
			PollInterval: poll,
			BatchSize:    batch,
		},
		Temporal: TemporalConfig{
			Address:   os.Getenv("TEMPORAL_ADDRESS"),
			Namespace: getenv("TEMPORAL_NAMESPACE", "default"),
			TaskQueue: getenv("TEMPORAL_TASK_QUEUE", "marketplace-deadlines"),
		},
	}, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
