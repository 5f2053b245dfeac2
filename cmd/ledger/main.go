// Command ledger runs the scheduled ledger jobs once from the command line.
// It is the manual counterpart of the /cron endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/marketplace-ledger/internal/app"
	"github.com/kevin07696/marketplace-ledger/internal/config"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/services/settlement"
	"github.com/kevin07696/marketplace-ledger/pkg/resilience"
	"github.com/kevin07696/marketplace-ledger/pkg/timeutil"
)

const (
	jobTimeout  = 10 * time.Minute
	jobAttempts = 3
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "ledger %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	var job func(ctx context.Context, a *app.App) error

	switch command {
	case "eligibility":
		job = eligibilityJob
	case "settle":
		fs := flag.NewFlagSet("settle", flag.ExitOnError)
		payoutDate := fs.String("payout-date", "", "payout date YYYY-MM-DD (default: today UTC)")
		force := fs.Bool("force", false, "run even when the date is not a payout day")
		fs.Parse(args)

		req := settlement.GenerateRequest{Force: *force}
		if *payoutDate != "" {
			day, err := timeutil.ParseDay(*payoutDate)
			if err != nil {
				return fmt.Errorf("invalid -payout-date: %w", err)
			}
			req.PayoutDate = &day
		}
		job = func(ctx context.Context, a *app.App) error { return settleJob(ctx, a, req) }
	case "reconcile":
		fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
		from := fs.String("from", "", "first day of the period YYYY-MM-DD (required)")
		to := fs.String("to", "", "last day of the period YYYY-MM-DD (required)")
		fs.Parse(args)

		start, end, err := parsePeriod(*from, *to)
		if err != nil {
			return err
		}
		job = func(ctx context.Context, a *app.App) error { return reconcileJob(ctx, a, start, end) }
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command")
	}

	cfg, err := config.LoadStorageFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := app.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return resilience.Retry(ctx, resilience.JobBackoff(), jobAttempts, func(err error) bool {
		if !domain.IsRetryable(err) {
			return false
		}
		logger.Warn("Ledger job failed, retrying", zap.String("command", command), zap.Error(err))
		return true
	}, func(ctx context.Context) error {
		return job(ctx, a)
	})
}

func parsePeriod(from, to string) (time.Time, time.Time, error) {
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("-from and -to are required")
	}
	fromDay, err := timeutil.ParseDay(from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -from: %w", err)
	}
	toDay, err := timeutil.ParseDay(to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -to: %w", err)
	}
	return timeutil.DayRange(fromDay, toDay)
}

func eligibilityJob(ctx context.Context, a *app.App) error {
	result, err := a.Eligibility.CalculateEligibility(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("orders marked eligible: %d\n", result.Updated)
	return nil
}

func settleJob(ctx context.Context, a *app.App, req settlement.GenerateRequest) error {
	result, err := a.Settlements.GenerateSettlements(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("payout date:  %s\n", result.PayoutDate.Format(timeutil.DateLayout))
	if result.Skipped {
		fmt.Printf("skipped:      %s\n", result.SkipReason)
		return nil
	}
	fmt.Printf("settlements:  %d\n", result.SettlementsCreated)
	fmt.Printf("orders:       %d\n", result.OrdersSettled)
	fmt.Printf("lines:        %d\n", result.LinesSettled)
	fmt.Printf("order amount: %s\n", result.Totals.OrderAmount.StringFixed(2))
	fmt.Printf("commission:   %s (+%s VAT)\n", result.Totals.Commission.StringFixed(2), result.Totals.CommissionTax.StringFixed(2))
	fmt.Printf("payout:       %s\n", result.Totals.Payout.StringFixed(2))
	return nil
}

func reconcileJob(ctx context.Context, a *app.App, from, to time.Time) error {
	rec, err := a.Reconciliation.RunReconciliation(ctx, from, to)
	if err != nil {
		return err
	}

	fmt.Printf("reconciliation %s\n", rec.ID)
	fmt.Printf("period:               %s .. %s\n", rec.PeriodStart.Format(time.RFC3339), rec.PeriodEnd.Format(time.RFC3339))
	fmt.Printf("gmv:                  %s\n", rec.GMV.StringFixed(2))
	fmt.Printf("commission earned:    %s\n", rec.CommissionEarned.StringFixed(2))
	fmt.Printf("commission accrued:   %s\n", rec.CommissionAccrued.StringFixed(2))
	fmt.Printf("refunds:              %d totalling %s\n", rec.Refunds.Count, rec.Refunds.TotalRefunded.StringFixed(2))
	fmt.Printf("settlements paid:     %s\n", rec.SettlementsPaid.StringFixed(2))
	fmt.Printf("net platform revenue: %s\n", rec.NetPlatformRevenue.StringFixed(2))
	fmt.Printf("discrepancy:          %s\n", rec.DiscrepancyAmount.StringFixed(2))

	if rec.DiscrepancyAmount.Abs().GreaterThan(a.Ledger.DiscrepancyTolerance) {
		a.Logger.Warn("Reconciliation discrepancy above tolerance",
			zap.String("reconciliation_id", rec.ID),
			zap.String("discrepancy", rec.DiscrepancyAmount.String()),
			zap.String("notes", rec.DiscrepancyNotes),
		)
		return fmt.Errorf("discrepancy %s exceeds tolerance", rec.DiscrepancyAmount.StringFixed(2))
	}
	return nil
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: ledger COMMAND [flags]

Commands:
    eligibility                               Stamp settlement eligibility on delivered orders
    settle [-payout-date DATE] [-force]       Generate settlements for a payout day
    reconcile -from DATE -to DATE             Snapshot and audit totals for an inclusive period

Configuration is read from the environment (or .env), as for the server.
`)
}
