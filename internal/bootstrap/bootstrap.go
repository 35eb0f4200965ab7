package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"tatuticket/internal/audit"
	"tatuticket/internal/billing"
	"tatuticket/internal/config"
	"tatuticket/internal/mailer"
	"tatuticket/internal/metrics"
	"tatuticket/internal/payments"
	"tatuticket/internal/pricing"
	"tatuticket/internal/tenants"
	"tatuticket/internal/usage"
	"tatuticket/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Stores are the persistence backends the billing services run on.
type Stores struct {
	Tenants tenants.Repository
	Audit   audit.Repository
	// Ledger may be nil; repeated runs in a period then charge again.
	Ledger billing.RunLedger
	// Leaser may be nil for single-replica deployments.
	Leaser billing.Leaser
}

// Services is the fully wired billing stack shared by cmd/api and cmd/billingctl.
type Services struct {
	Tenants    tenants.Repository
	Provider   payments.Provider
	Sender     mailer.Sender
	Metrics    *metrics.BillingMetrics
	Calculator *billing.Calculator
	Processor  *billing.Processor
	Scheduler  *billing.Scheduler
}

// NewServices builds the billing stack on top of stores.
func NewServices(cfg config.Config, stores Stores, log *slog.Logger, reg prometheus.Registerer) (*Services, error) {
	if stores.Tenants == nil || stores.Audit == nil {
		return nil, fmt.Errorf("bootstrap: tenant and audit stores are required")
	}
	if log == nil {
		log = slog.Default()
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	sender := newSender(cfg, log)
	m := metrics.NewBillingMetrics(reg, cfg.App.Env)

	agg := usage.NewAggregator(stores.Tenants, usage.DefaultStrategies())
	calc := billing.NewCalculator(stores.Tenants, agg, pricing.DefaultRuleTable(), log)
	notifier := billing.NewNotifier(stores.Tenants, sender, log, m)

	proc := billing.NewProcessor(stores.Tenants, calc, provider, notifier, audit.NewService(stores.Audit), billing.Options{
		Ledger:        stores.Ledger,
		Metrics:       m,
		Logger:        log,
		Concurrency:   cfg.Billing.Concurrency,
		TenantTimeout: cfg.Billing.RunTimeout,
	})

	sched := billing.NewScheduler(proc, stores.Leaser, billing.SchedulerConfig{
		Interval: cfg.Billing.CheckInterval,
		LeaseTTL: cfg.Billing.LeaseTTL,
	}, log, m)

	log.Info("billing services ready",
		"provider", provider.Name(),
		"concurrency", cfg.Billing.Concurrency,
		"ledger", stores.Ledger != nil,
		"lease", stores.Leaser != nil,
	)

	return &Services{
		Tenants:    stores.Tenants,
		Provider:   provider,
		Sender:     sender,
		Metrics:    m,
		Calculator: calc,
		Processor:  proc,
		Scheduler:  sched,
	}, nil
}

func newProvider(cfg config.Config) (payments.Provider, error) {
	if !cfg.StripeEnabled() {
		return payments.DisabledProvider{}, nil
	}
	p, err := payments.NewStripeProvider(cfg.Stripe.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: stripe: %w", err)
	}
	return p, nil
}

func newSender(cfg config.Config, log *slog.Logger) mailer.Sender {
	if cfg.SMTP.Host == "" {
		return mailer.NewLogSender(log)
	}
	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

// Runtime owns the process-level connections behind Services.
type Runtime struct {
	DB    *sql.DB
	Redis *redis.Client
	*Services
}

// Open connects to Postgres and Redis and wires the billing stack on them.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer) (*Runtime, error) {
	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, fmt.Errorf("postgres init: %w", err)
	}

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis init: %w", err)
	}

	svc, err := NewServices(cfg, Stores{
		Tenants: tenants.NewPostgresRepo(db),
		Audit:   audit.NewPostgresRepo(db),
		Ledger:  billing.NewPostgresLedger(db),
		Leaser:  utils.NewRedisLeaser(rdb),
	}, log, reg)
	if err != nil {
		_ = rdb.Close()
		_ = db.Close()
		return nil, err
	}
	return &Runtime{DB: db, Redis: rdb, Services: svc}, nil
}

func (r *Runtime) Close() {
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
}
