// Package settlement batches eligible order lines into per-merchant payouts.
package settlement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/marketplace-ledger/internal/config"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
	"github.com/kevin07696/marketplace-ledger/pkg/observability"
	"github.com/kevin07696/marketplace-ledger/pkg/timeutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GenerateRequest controls one settlement run
type GenerateRequest struct {
	PayoutDate *time.Time // defaults to today (UTC)
	Force      bool       // run even when the date is not a payout day
}

// RunTotals sums the monetary figures of all settlements created in a run
type RunTotals struct {
	OrderAmount   decimal.Decimal `json:"order_amount"`
	Commission    decimal.Decimal `json:"commission"`
	CommissionTax decimal.Decimal `json:"commission_tax"`
	Payout        decimal.Decimal `json:"payout"`
}

// RunResult reports one settlement run. A skipped run is not an error.
type RunResult struct {
	PayoutDate         time.Time            `json:"payout_date"`
	Skipped            bool                 `json:"skipped"`
	SkipReason         string               `json:"skip_reason,omitempty"`
	SettlementsCreated int                  `json:"settlements_created"`
	OrdersSettled      int                  `json:"orders_settled"`
	LinesSettled       int                  `json:"lines_settled"`
	Merchants          []string             `json:"merchants"`
	Totals             RunTotals            `json:"totals"`
	Settlements        []*models.Settlement `json:"-"`
}

// Batcher generates and manages settlements
type Batcher struct {
	db     ports.DBPort
	repo   ports.SettlementRepository
	cfg    config.LedgerConfig
	logger *zap.Logger
}

// NewBatcher creates a new settlement batcher
func NewBatcher(db ports.DBPort, repo ports.SettlementRepository, cfg config.LedgerConfig, logger *zap.Logger) *Batcher {
	return &Batcher{
		db:     db,
		repo:   repo,
		cfg:    cfg,
		logger: logger,
	}
}

// GenerateSettlements creates one settlement per merchant for every eligible,
// unsettled order line up to the end of the payout date. The whole run is one
// transaction: any failure rolls back every settlement of the run.
func (b *Batcher) GenerateSettlements(ctx context.Context, req GenerateRequest) (*RunResult, error) {
	start := time.Now()

	payoutDate := timeutil.StartOfDay(timeutil.Now())
	if req.PayoutDate != nil {
		payoutDate = timeutil.StartOfDay(*req.PayoutDate)
	}

	result := newRunResult(payoutDate)

	if !b.cfg.IsPayoutDay(payoutDate) && !req.Force {
		result.Skipped = true
		result.SkipReason = fmt.Sprintf("%s is not a payout day", payoutDate.Format(timeutil.DateLayout))
		observability.RecordSettlementRun("skipped", 0, 0, time.Since(start).Seconds())
		b.logger.Info("Settlement run skipped",
			zap.String("payout_date", payoutDate.Format(timeutil.DateLayout)),
			zap.String("reason", result.SkipReason),
		)
		return result, nil
	}

	cutoff := timeutil.EndOfDay(payoutDate)

	err := b.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		merchants, err := b.repo.ListEligibleMerchants(ctx, tx, cutoff)
		if err != nil {
			return fmt.Errorf("list eligible merchants: %w", err)
		}
		sort.Strings(merchants)

		// Sorted lock order keeps concurrent runs from deadlocking
		for _, merchantID := range merchants {
			if err := b.repo.LockMerchant(ctx, tx, merchantID); err != nil {
				return fmt.Errorf("lock merchant %s: %w", merchantID, err)
			}
		}

		for _, merchantID := range merchants {
			// Re-read under the lock; a concurrent run may have settled these lines
			lines, err := b.repo.ListEligibleLines(ctx, tx, merchantID, cutoff)
			if err != nil {
				return fmt.Errorf("list eligible lines for merchant %s: %w", merchantID, err)
			}
			if len(lines) == 0 {
				continue
			}

			s, err := BuildSettlement(merchantID, payoutDate, lines, b.cfg)
			if err != nil {
				return fmt.Errorf("build settlement for merchant %s: %w", merchantID, err)
			}

			if err := b.repo.Create(ctx, tx, s); err != nil {
				b.logger.Error("Failed to persist settlement",
					zap.String("merchant_id", merchantID),
					zap.String("payout_date", payoutDate.Format(timeutil.DateLayout)),
					zap.Strings("order_ids", orderIDs(s)),
					zap.Error(err),
				)
				return fmt.Errorf("create settlement for merchant %s: %w", merchantID, err)
			}

			result.add(s)
		}
		return nil
	})
	if err != nil {
		observability.RecordSettlementRun("failed", 0, 0, time.Since(start).Seconds())
		b.logger.Error("Settlement run rolled back",
			zap.String("payout_date", payoutDate.Format(timeutil.DateLayout)),
			zap.Bool("retryable", domain.IsRetryable(err)),
			zap.Error(err),
		)
		return nil, err
	}

	observability.RecordSettlementRun("completed", result.SettlementsCreated,
		result.Totals.Payout.Shift(2).IntPart(), time.Since(start).Seconds())
	b.logger.Info("Settlement run completed",
		zap.String("payout_date", payoutDate.Format(timeutil.DateLayout)),
		zap.Int("settlements_created", result.SettlementsCreated),
		zap.Int("orders_settled", result.OrdersSettled),
		zap.Int("lines_settled", result.LinesSettled),
		zap.String("total_payout", result.Totals.Payout.String()),
	)

	return result, nil
}

// MarkPaid records the payout transfer for a pending settlement
func (b *Batcher) MarkPaid(ctx context.Context, settlementID, transactionRef string) (*models.Settlement, error) {
	if transactionRef == "" {
		return nil, domain.ErrValidationMissingField.WithDetail("field", "transaction_reference")
	}

	var settlement *models.Settlement

	err := b.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		s, err := b.repo.GetByIDForUpdate(ctx, tx, settlementID)
		if err != nil {
			return err
		}
		if s.IsPaid() {
			return domain.ErrSettlementAlreadyPaid.WithDetail("settlement_id", settlementID)
		}

		paidAt := timeutil.Now()
		if err := b.repo.MarkPaid(ctx, tx, settlementID, transactionRef, paidAt); err != nil {
			return fmt.Errorf("mark settlement paid: %w", err)
		}

		s.Status = models.SettlementPaid
		s.TransactionReference = &transactionRef
		s.PaidAt = &paidAt
		settlement = s
		return nil
	})
	if err != nil {
		b.logger.Error("Failed to mark settlement paid",
			zap.String("settlement_id", settlementID),
			zap.Error(err),
		)
		return nil, err
	}

	b.logger.Info("Settlement paid",
		zap.String("settlement_id", settlementID),
		zap.String("merchant_id", settlement.MerchantID),
		zap.String("transaction_reference", transactionRef),
	)
	return settlement, nil
}

// GetSettlement returns a settlement with its lines
func (b *Batcher) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	return b.repo.GetByID(ctx, nil, settlementID)
}

// ListSettlements returns a merchant's settlements, newest payout date first
func (b *Batcher) ListSettlements(ctx context.Context, merchantID string, limit, offset int32) ([]*models.Settlement, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return b.repo.ListByMerchant(ctx, nil, merchantID, limit, offset)
}

func newRunResult(payoutDate time.Time) *RunResult {
	return &RunResult{
		PayoutDate: payoutDate,
		Merchants:  []string{},
		Totals: RunTotals{
			OrderAmount:   decimal.Zero,
			Commission:    decimal.Zero,
			CommissionTax: decimal.Zero,
			Payout:        decimal.Zero,
		},
	}
}

func (r *RunResult) add(s *models.Settlement) {
	r.SettlementsCreated++
	r.OrdersSettled += s.OrderCount
	r.LinesSettled += s.LineCount
	r.Merchants = append(r.Merchants, s.MerchantID)
	r.Totals.OrderAmount = r.Totals.OrderAmount.Add(s.TotalOrderAmount)
	r.Totals.Commission = r.Totals.Commission.Add(s.CommissionAmount)
	r.Totals.CommissionTax = r.Totals.CommissionTax.Add(s.CommissionTax)
	r.Totals.Payout = r.Totals.Payout.Add(s.MerchantPayout)
	r.Settlements = append(r.Settlements, s)
}

func orderIDs(s *models.Settlement) []string {
	ids := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		ids = append(ids, l.OrderID)
	}
	return ids
}
