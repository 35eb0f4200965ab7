package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"tatuticket/internal/billing"
	"tatuticket/internal/bootstrap"
	"tatuticket/internal/config"
	"tatuticket/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// openFunc builds the billing services and returns a cleanup func.
type openFunc func(ctx context.Context) (*bootstrap.Services, func(), error)

func openFromEnv(ctx context.Context) (*bootstrap.Services, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewWithWriter(cfg.App.Env, os.Stderr)
	// CLI runs are one-shot; nothing scrapes their metrics.
	rt, err := bootstrap.Open(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		return nil, nil, err
	}
	return rt.Services, rt.Close, nil
}

func newRootCmd(open openFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Operate TatuTicket overage billing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	withServices := func(fn func(ctx context.Context, svc *bootstrap.Services, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			return fn(cmd.Context(), svc, cmd.OutOrStdout(), args)
		}
	}

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Bill every active tenant for the current period",
		Args:  cobra.NoArgs,
		RunE: withServices(func(ctx context.Context, svc *bootstrap.Services, out io.Writer, _ []string) error {
			report, err := svc.Processor.ProcessAutomaticBilling(ctx)
			if err != nil {
				return err
			}
			return writeJSON(out, report)
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "run-tenant <tenant-id>",
		Short: "Bill one tenant for the current period",
		Args:  cobra.ExactArgs(1),
		RunE: withServices(func(ctx context.Context, svc *bootstrap.Services, out io.Writer, args []string) error {
			res, err := svc.Processor.ProcessTenantBilling(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(out, res)
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "summary <tenant-id>",
		Short: "Show current usage and pending overage for a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: withServices(func(ctx context.Context, svc *bootstrap.Services, out io.Writer, args []string) error {
			s, err := svc.Calculator.GetBillingSummary(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(out, s)
		}),
	})

	var force bool
	tickCmd := &cobra.Command{
		Use:   "tick",
		Short: "Run the scheduler check once",
		Long: `Run the monthly scheduler check once.

Without --force nothing is billed unless today is the first day of the
month. The period lease is honoured either way.`,
		Args: cobra.NoArgs,
		RunE: withServices(func(ctx context.Context, svc *bootstrap.Services, out io.Writer, _ []string) error {
			var (
				report billing.RunReport
				ran    bool
				err    error
			)
			if force {
				report, ran, err = svc.Scheduler.RunNow(ctx)
			} else {
				report, ran, err = svc.Scheduler.Tick(ctx)
			}
			if errors.Is(err, billing.ErrNotBillingDay) {
				_, werr := fmt.Fprintln(out, "not the first day of the month; nothing to do (use --force to override)")
				return werr
			}
			if err != nil {
				return err
			}
			if !ran {
				_, werr := fmt.Fprintln(out, "period already handled by another run")
				return werr
			}
			return writeJSON(out, report)
		}),
	}
	tickCmd.Flags().BoolVar(&force, "force", false, "bypass the first-of-month check")
	root.AddCommand(tickCmd)

	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openFromEnv).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
