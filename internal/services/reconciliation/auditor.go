// Package reconciliation cross-checks ledger totals for a period.
package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/marketplace-ledger/internal/config"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
	"github.com/kevin07696/marketplace-ledger/internal/services/tax"
	"github.com/kevin07696/marketplace-ledger/pkg/observability"
	"github.com/kevin07696/marketplace-ledger/pkg/timeutil"
	"go.uber.org/zap"
)

// Auditor computes and stores reconciliation snapshots. It reports
// discrepancies and never corrects them.
type Auditor struct {
	db     ports.DBPort
	ledger ports.LedgerReader
	repo   ports.ReconciliationRepository
	cfg    config.LedgerConfig
	logger *zap.Logger
}

// NewAuditor creates a new reconciliation auditor
func NewAuditor(db ports.DBPort, ledger ports.LedgerReader, repo ports.ReconciliationRepository, cfg config.LedgerConfig, logger *zap.Logger) *Auditor {
	return &Auditor{
		db:     db,
		ledger: ledger,
		repo:   repo,
		cfg:    cfg,
		logger: logger,
	}
}

// Reconcile computes the snapshot for [from, to) without persisting it.
func (a *Auditor) Reconcile(ctx context.Context, from, to time.Time) (*models.Reconciliation, error) {
	if !from.Before(to) {
		return nil, domain.ErrValidationFailed.
			WithDetail("from", from.Format(time.RFC3339)).
			WithDetail("to", to.Format(time.RFC3339))
	}
	period := models.Period{From: from, To: to}

	rec := &models.Reconciliation{
		ID:          uuid.New().String(),
		PeriodStart: from,
		PeriodEnd:   to,
		CreatedAt:   timeutil.Now(),
	}

	err := a.db.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if rec.GMV, err = a.ledger.SumGMV(ctx, tx, period); err != nil {
			return fmt.Errorf("sum gmv: %w", err)
		}
		if rec.CommissionEarned, err = a.ledger.SumCommissionEarned(ctx, tx, period); err != nil {
			return fmt.Errorf("sum commission earned: %w", err)
		}
		if rec.CommissionAccrued, err = a.ledger.SumCommissionAccrued(ctx, tx); err != nil {
			return fmt.Errorf("sum commission accrued: %w", err)
		}
		if rec.Refunds, err = a.ledger.SummarizeRefunds(ctx, tx, period); err != nil {
			return fmt.Errorf("summarize refunds: %w", err)
		}
		if rec.SettlementsPaid, err = a.ledger.SumSettlementsPaid(ctx, tx, period); err != nil {
			return fmt.Errorf("sum settlements paid: %w", err)
		}
		if rec.DebitNotes, err = a.ledger.SummarizeDebitNotes(ctx, tx, period); err != nil {
			return fmt.Errorf("summarize debit notes: %w", err)
		}
		if rec.PendingSettlements, err = a.ledger.SummarizePendingSettlements(ctx, tx); err != nil {
			return fmt.Errorf("summarize pending settlements: %w", err)
		}
		return nil
	})
	if err != nil {
		a.logger.Error("Failed to load reconciliation figures",
			zap.Time("from", from),
			zap.Time("to", to),
			zap.Error(err),
		)
		return nil, err
	}

	split, err := tax.BackOut(rec.GMV, a.cfg.VATRate)
	if err != nil {
		return nil, err
	}
	rec.TaxCollected = split.Tax

	rec.NetPlatformRevenue = rec.CommissionEarned.Sub(rec.Refunds.CommissionReversed)
	rec.ExpectedMerchantPayables = rec.GMV.Sub(rec.CommissionEarned).Sub(rec.Refunds.TotalRefunded)
	rec.DiscrepancyAmount = rec.ExpectedMerchantPayables.Sub(rec.SettlementsPaid)

	if rec.HasDiscrepancy(a.cfg.DiscrepancyTolerance) {
		rec.DiscrepancyNotes = fmt.Sprintf(
			"Discrepancy of %s exceeds tolerance %s. Pending settlements: %s across %d delivered, paid, unsettled orders.",
			rec.DiscrepancyAmount.StringFixed(2),
			a.cfg.DiscrepancyTolerance.StringFixed(2),
			rec.PendingSettlements.Total.StringFixed(2),
			rec.PendingSettlements.OrderCount,
		)
	}

	return rec, nil
}

// RunReconciliation computes the snapshot for [from, to) and persists it
func (a *Auditor) RunReconciliation(ctx context.Context, from, to time.Time) (*models.Reconciliation, error) {
	rec, err := a.Reconcile(ctx, from, to)
	if err != nil {
		return nil, err
	}

	err = a.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return a.repo.Save(ctx, tx, rec)
	})
	if err != nil {
		a.logger.Error("Failed to save reconciliation",
			zap.String("reconciliation_id", rec.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("save reconciliation: %w", err)
	}

	hasDiscrepancy := rec.HasDiscrepancy(a.cfg.DiscrepancyTolerance)
	discrepancy, _ := rec.DiscrepancyAmount.Float64()
	observability.RecordReconciliation(discrepancy, hasDiscrepancy)

	fields := []zap.Field{
		zap.String("reconciliation_id", rec.ID),
		zap.Time("from", from),
		zap.Time("to", to),
		zap.String("gmv", rec.GMV.String()),
		zap.String("settlements_paid", rec.SettlementsPaid.String()),
		zap.String("discrepancy", rec.DiscrepancyAmount.String()),
	}
	if hasDiscrepancy {
		a.logger.Warn("Reconciliation found discrepancy", append(fields,
			zap.Int("pending_orders", rec.PendingSettlements.OrderCount),
			zap.String("pending_total", rec.PendingSettlements.Total.String()),
		)...)
	} else {
		a.logger.Info("Reconciliation completed", fields...)
	}

	return rec, nil
}

// ListReconciliations returns stored snapshots, newest first
func (a *Auditor) ListReconciliations(ctx context.Context, limit int32) ([]*models.Reconciliation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return a.repo.List(ctx, nil, limit)
}
