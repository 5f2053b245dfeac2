package ports

import (
	"context"

	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/shopspring/decimal"
)

// LedgerReader aggregates ledger figures for a period.
// Periods are half-open: [From, To).
type LedgerReader interface {
	// SumGMV sums grand_total of paid orders created in the period that reached
	// delivery, including orders refunded afterwards
	SumGMV(ctx context.Context, db DBTX, period models.Period) (decimal.Decimal, error)
	// SumCommissionEarned sums settlement-line commission for settlements with payout date in the period
	SumCommissionEarned(ctx context.Context, db DBTX, period models.Period) (decimal.Decimal, error)
	// SumCommissionAccrued sums frozen commission net of reversals on eligible lines not yet settled
	SumCommissionAccrued(ctx context.Context, db DBTX) (decimal.Decimal, error)
	SummarizeRefunds(ctx context.Context, db DBTX, period models.Period) (models.RefundSummary, error)
	SumSettlementsPaid(ctx context.Context, db DBTX, period models.Period) (decimal.Decimal, error)
	SummarizeDebitNotes(ctx context.Context, db DBTX, period models.Period) (models.DebitNoteSummary, error)
	// SummarizePendingSettlements covers delivered, paid orders with no settlement line
	SummarizePendingSettlements(ctx context.Context, db DBTX) (models.PendingSettlementSummary, error)

	SumPlatformFees(ctx context.Context, db DBTX, period models.Period) (decimal.Decimal, error)
	SumGatewayFees(ctx context.Context, db DBTX, period models.Period) (decimal.Decimal, error)
	// SumReclaimableInputVAT sums VAT of approved, reclaimable, not yet reclaimed expenses
	SumReclaimableInputVAT(ctx context.Context, db DBTX, period models.Period) (decimal.Decimal, error)
	SumDeductibleExpenses(ctx context.Context, db DBTX, period models.Period) (decimal.Decimal, error)
}

// ReconciliationRepository persists reconciliation snapshots
type ReconciliationRepository interface {
	Save(ctx context.Context, tx DBTX, rec *models.Reconciliation) error
	List(ctx context.Context, db DBTX, limit int32) ([]*models.Reconciliation, error)
}

// ReportCache is a display-only cache for computed reports.
// Misses are reported with found=false and a nil error.
type ReportCache interface {
	Get(ctx context.Context, key string, dest interface{}) (found bool, err error)
	Set(ctx context.Context, key string, value interface{}) error
}
