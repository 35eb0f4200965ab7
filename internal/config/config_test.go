package config

import (
	"strings"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "tatuticket"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "DB_HOST is required") {
		t.Fatalf("expected aggregated errors, got %v", err)
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "tatuticket"
	c.Auth.JWTAudience = "api"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Billing.Concurrency != 1 {
		t.Fatalf("expected sequential billing by default, got %d", c.Billing.Concurrency)
	}
	if c.Billing.CheckInterval != 24*time.Hour {
		t.Fatalf("expected daily check interval, got %s", c.Billing.CheckInterval)
	}
	if c.Stripe.DefaultCurrency != "aoa" {
		t.Fatalf("expected aoa default currency, got %q", c.Stripe.DefaultCurrency)
	}
	if c.StripeEnabled() {
		t.Fatalf("expected stripe disabled without key")
	}
}

func TestValidate_SMTPRequiresFrom(t *testing.T) {
	c := validLocal()
	c.SMTP.Host = "smtp.example.com"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected SMTP_FROM error")
	}
	c.SMTP.From = "billing@tatuticket.ao"
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.SMTP.Port != 587 {
		t.Fatalf("expected default smtp port 587, got %d", c.SMTP.Port)
	}
}

func TestValidate_ProductionRejectsTestStripeKey(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.DB.SSLMode = "require"
	c.Auth.JWTIssuer = "tatuticket"
	c.Auth.JWTAudience = "api"
	c.Stripe.SecretKey = "sk_test_123"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for test key in production")
	}
}

func TestFromEnv_ParsesBillingSettings(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_NAME", "n")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STRIPE_SECRET_KEY", "sk_live_abc")
	t.Setenv("BILLING_CONCURRENCY", "4")
	t.Setenv("BILLING_RUN_TIMEOUT", "30s")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Billing.Concurrency != 4 || c.Billing.RunTimeout != 30*time.Second {
		t.Fatalf("unexpected billing config: %+v", c.Billing)
	}
	if !c.StripeEnabled() {
		t.Fatalf("expected stripe enabled")
	}
}

func TestFromEnv_RejectsBadDuration(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_NAME", "n")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("BILLING_CHECK_INTERVAL", "daily")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected duration parse error")
	}
}

func TestDevLoginEnabled_OnlyLocalAndDev(t *testing.T) {
	for env, want := range map[string]bool{"local": true, "dev": true, "staging": false, "production": false} {
		c := Config{App: AppConfig{Env: env}}
		if got := c.DevLoginEnabled(); got != want {
			t.Fatalf("env %s: expected %v, got %v", env, want, got)
		}
	}
}
