package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the tatuticket processes.
// Values come from the environment; a .env file in the working directory is
// loaded first when present and never overrides variables already set.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Stripe  StripeConfig
	SMTP    SMTPConfig
	Billing BillingConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full.
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type StripeConfig struct {
	// SecretKey empty (or not an sk_ key) leaves invoice-item creation disabled.
	SecretKey       string
	DefaultCurrency string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type BillingConfig struct {
	// Concurrency is the number of tenants billed in parallel. 1 keeps the
	// fan-out strictly sequential.
	Concurrency   int
	CheckInterval time.Duration
	RunTimeout    time.Duration
	LeaseTTL      time.Duration
}

// Load reads the environment (after an optional .env) and validates it.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = requiredInt(parseErrs, "APP_PORT")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port, parseErrs = requiredInt(parseErrs, "DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port, parseErrs = requiredInt(parseErrs, "REDIS_PORT")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_REFRESH_TTL")

	c.Stripe.SecretKey = strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY"))
	c.Stripe.DefaultCurrency = strings.ToLower(strings.TrimSpace(os.Getenv("STRIPE_DEFAULT_CURRENCY")))

	c.SMTP.Host = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	c.SMTP.Port, parseErrs = optionalInt(parseErrs, "SMTP_PORT")
	c.SMTP.Username = strings.TrimSpace(os.Getenv("SMTP_USERNAME"))
	c.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	c.SMTP.From = strings.TrimSpace(os.Getenv("SMTP_FROM"))

	c.Billing.Concurrency, parseErrs = optionalInt(parseErrs, "BILLING_CONCURRENCY")
	c.Billing.CheckInterval, parseErrs = optionalDuration(parseErrs, "BILLING_CHECK_INTERVAL")
	c.Billing.RunTimeout, parseErrs = optionalDuration(parseErrs, "BILLING_RUN_TIMEOUT")
	c.Billing.LeaseTTL, parseErrs = optionalDuration(parseErrs, "BILLING_LEASE_TTL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if !validPort(c.App.Port) {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if !validPort(c.DB.Port) {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if !validPort(c.Redis.Port) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Stripe.DefaultCurrency == "" {
		c.Stripe.DefaultCurrency = "aoa"
	}
	if c.Stripe.SecretKey != "" && c.IsProduction() && strings.HasPrefix(c.Stripe.SecretKey, "sk_test") {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY must be a live key in production"))
	}

	if c.SMTP.Host != "" {
		if c.SMTP.Port == 0 {
			c.SMTP.Port = 587
		}
		if !validPort(c.SMTP.Port) {
			errs = append(errs, fmt.Errorf("SMTP_PORT must be a valid port, got %d", c.SMTP.Port))
		}
		if c.SMTP.From == "" {
			errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
		}
	}

	if c.Billing.Concurrency <= 0 {
		c.Billing.Concurrency = 1
	}
	if c.Billing.Concurrency > 64 {
		errs = append(errs, fmt.Errorf("BILLING_CONCURRENCY must be <= 64, got %d", c.Billing.Concurrency))
	}
	if c.Billing.CheckInterval <= 0 {
		c.Billing.CheckInterval = 24 * time.Hour
	}
	if c.Billing.RunTimeout <= 0 {
		c.Billing.RunTimeout = 2 * time.Minute
	}
	if c.Billing.LeaseTTL <= 0 {
		c.Billing.LeaseTTL = 6 * time.Hour
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DevLoginEnabled reports whether the credential-less token endpoint may be
// served. Only local and dev qualify.
func (c Config) DevLoginEnabled() bool {
	return c.App.Env == "local" || c.App.Env == "dev"
}

// StripeEnabled reports whether a usable secret key is configured.
func (c Config) StripeEnabled() bool {
	return strings.HasPrefix(c.Stripe.SecretKey, "sk_")
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Contains the password; never log it.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func requiredInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, append(errs, fmt.Errorf("%s is required", key))
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalDuration(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d, errs
}

func validPort(p int) bool { return p > 0 && p <= 65535 }

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
