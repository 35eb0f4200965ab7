package billing

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tatuticket/internal/metrics"
	"tatuticket/internal/usage"
)

// BatchRunner is satisfied by *Processor.
type BatchRunner interface {
	ProcessAutomaticBilling(ctx context.Context) (RunReport, error)
}

// Leaser provides a cluster-wide lease. *utils.RedisLeaser satisfies it.
type Leaser interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

var ErrNotBillingDay = errors.New("billing: not the first day of the month")

type SchedulerConfig struct {
	// Interval between date checks; daily by default.
	Interval time.Duration
	// LeaseTTL bounds how long one replica owns a period's run.
	LeaseTTL time.Duration
}

// Scheduler triggers automatic billing on the first day of each month,
// judged by its clock's local time.
type Scheduler struct {
	runner  BatchRunner
	leaser  Leaser
	cfg     SchedulerConfig
	log     *slog.Logger
	metrics *metrics.BillingMetrics
	clock   func() time.Time

	mu            sync.Mutex
	lastRunPeriod string
}

func NewScheduler(runner BatchRunner, leaser Leaser, cfg SchedulerConfig, log *slog.Logger, m *metrics.BillingMetrics) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 6 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{runner: runner, leaser: leaser, cfg: cfg, log: log, metrics: m, clock: time.Now}
}

// WithClock replaces the scheduler clock. Intended for tests and tooling.
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	s.clock = clock
	return s
}

func leaseKey(period string) string { return "billing:lease:" + period }

// Tick runs automatic billing when today is the 1st and returns
// ErrNotBillingDay otherwise. A period already run by this process, or
// leased by another replica, is skipped without error (ran is false).
func (s *Scheduler) Tick(ctx context.Context) (report RunReport, ran bool, err error) {
	now := s.clock()
	if now.Day() != 1 {
		s.metrics.SchedulerTick(metrics.TickGated)
		s.log.DebugContext(ctx, "billing tick: not billing day", "date", now.Format("2006-01-02"))
		return RunReport{}, false, ErrNotBillingDay
	}
	return s.run(ctx, usage.PeriodKey(now))
}

// RunNow bypasses the date gate but still honours the lease.
func (s *Scheduler) RunNow(ctx context.Context) (RunReport, bool, error) {
	return s.run(ctx, usage.PeriodKey(s.clock()))
}

func (s *Scheduler) run(ctx context.Context, period string) (RunReport, bool, error) {
	log := s.log.With("period", period)

	s.mu.Lock()
	if s.lastRunPeriod == period {
		s.mu.Unlock()
		log.DebugContext(ctx, "billing tick: period already run by this process")
		return RunReport{}, false, nil
	}
	s.mu.Unlock()

	if s.leaser != nil {
		ok, err := s.leaser.Acquire(ctx, leaseKey(period), s.cfg.LeaseTTL)
		if err != nil {
			s.metrics.SchedulerTick(metrics.TickErrored)
			return RunReport{}, false, err
		}
		if !ok {
			s.metrics.SchedulerTick(metrics.TickLeased)
			log.InfoContext(ctx, "billing tick: lease held by another instance")
			return RunReport{}, false, nil
		}
	}

	report, err := s.runner.ProcessAutomaticBilling(ctx)
	if err != nil {
		s.metrics.SchedulerTick(metrics.TickErrored)
		if s.leaser != nil {
			// Let another tick retry the period.
			if rerr := s.leaser.Release(context.WithoutCancel(ctx), leaseKey(period)); rerr != nil {
				log.WarnContext(ctx, "billing tick: release lease failed", "err", rerr)
			}
		}
		return RunReport{}, false, err
	}

	s.mu.Lock()
	s.lastRunPeriod = period
	s.mu.Unlock()

	s.metrics.SchedulerTick(metrics.TickRan)
	return report, true, nil
}

// Run ticks immediately and then every Interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.InfoContext(ctx, "billing scheduler started", "interval", s.cfg.Interval.String())

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.tickAndLog(ctx)
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "billing scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tickAndLog(ctx context.Context) {
	report, ran, err := s.Tick(ctx)
	switch {
	case errors.Is(err, ErrNotBillingDay):
	case err != nil:
		s.log.ErrorContext(ctx, "billing tick failed", "err", err)
	case ran:
		s.log.InfoContext(ctx, "billing tick completed",
			"processed", len(report.Processed),
			"failed", len(report.Failed),
		)
	}
}
