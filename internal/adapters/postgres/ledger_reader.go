package postgres

import (
	"context"
	"time"

	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/domain/ports"
	"github.com/kevin07696/marketplace-ledger/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// LedgerReader implements ports.LedgerReader with aggregate queries.
// Every period filter is half-open: column >= from AND column < to.
type LedgerReader struct {
	queryer
}

// NewLedgerReader creates a new ledger reader
func NewLedgerReader(db ports.DBPort) *LedgerReader {
	return &LedgerReader{queryer{pool: db.GetDB()}}
}

func (r *LedgerReader) sum(ctx context.Context, db ports.DBTX, msg, query string, args ...interface{}) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.conn(db).QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return decimal.Zero, classify(err, msg)
	}
	return total, nil
}

// SumGMV sums grand_total of paid orders created in the period that reached
// delivery, including those refunded afterwards. Refunds are reported separately.
func (r *LedgerReader) SumGMV(ctx context.Context, db ports.DBTX, period models.Period) (decimal.Decimal, error) {
	return r.sum(ctx, db, "sum gmv", `
		SELECT COALESCE(SUM(grand_total), 0)
		FROM orders
		WHERE payment_status = 'paid'
		  AND (status = 'delivered' OR (status = 'refunded' AND delivered_at IS NOT NULL))
		  AND created_at >= $1 AND created_at < $2`, period.From, period.To)
}

// SumCommissionEarned sums settled commission for payout dates in the period
func (r *LedgerReader) SumCommissionEarned(ctx context.Context, db ports.DBTX, period models.Period) (decimal.Decimal, error) {
	return r.sum(ctx, db, "sum commission earned", `
		SELECT COALESCE(SUM(sl.commission_amount), 0)
		FROM settlement_lines sl
		JOIN settlements s ON s.id = sl.settlement_id
		WHERE s.payout_date >= $1::date AND s.payout_date < $2::date`,
		dateParam(period.From), dateParam(period.To))
}

// SumCommissionAccrued sums frozen commission, net of reversals, on eligible
// lines that are not settled yet
func (r *LedgerReader) SumCommissionAccrued(ctx context.Context, db ports.DBTX) (decimal.Decimal, error) {
	return r.sum(ctx, db, "sum commission accrued", `
		SELECT COALESCE(SUM(ol.commission_amount - ol.commission_reversed), 0)
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE o.settlement_eligible_at <= NOW() AND `+eligibleLineFilter)
}

// SummarizeRefunds aggregates refunds processed in the period
func (r *LedgerReader) SummarizeRefunds(ctx context.Context, db ports.DBTX, period models.Period) (models.RefundSummary, error) {
	var s models.RefundSummary
	err := r.conn(db).QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total), 0),
		       COALESCE(SUM(commission_to_reverse), 0),
		       COALESCE(SUM(merchant_recovery_amount), 0)
		FROM refunds
		WHERE status = 'processed'
		  AND processed_at >= $1 AND processed_at < $2`, period.From, period.To,
	).Scan(&s.Count, &s.TotalRefunded, &s.CommissionReversed, &s.MerchantRecovery)
	if err != nil {
		return models.RefundSummary{}, classify(err, "summarize refunds")
	}
	return s, nil
}

// SumSettlementsPaid sums payouts of settlements paid in the period
func (r *LedgerReader) SumSettlementsPaid(ctx context.Context, db ports.DBTX, period models.Period) (decimal.Decimal, error) {
	return r.sum(ctx, db, "sum settlements paid", `
		SELECT COALESCE(SUM(merchant_payout), 0)
		FROM settlements
		WHERE status = 'paid' AND paid_at >= $1 AND paid_at < $2`, period.From, period.To)
}

// SummarizeDebitNotes aggregates debit notes issued in the period
func (r *LedgerReader) SummarizeDebitNotes(ctx context.Context, db ports.DBTX, period models.Period) (models.DebitNoteSummary, error) {
	var s models.DebitNoteSummary
	err := r.conn(db).QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(recovery_amount), 0)
		FROM merchant_debit_notes
		WHERE issued_at >= $1 AND issued_at < $2`, period.From, period.To,
	).Scan(&s.Count, &s.Total)
	if err != nil {
		return models.DebitNoteSummary{}, classify(err, "summarize debit notes")
	}
	return s, nil
}

// SummarizePendingSettlements covers delivered, paid orders with lines not yet settled
func (r *LedgerReader) SummarizePendingSettlements(ctx context.Context, db ports.DBTX) (models.PendingSettlementSummary, error) {
	var s models.PendingSettlementSummary
	err := r.conn(db).QueryRow(ctx, `
		SELECT COUNT(DISTINCT ol.order_id), COALESCE(SUM(ol.unit_price * (ol.quantity - ol.refunded_quantity)), 0)
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE o.status = 'delivered'
		  AND o.payment_status = 'paid'
		  AND ol.merchant_id IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM settlement_lines sl
			WHERE sl.order_id = ol.order_id AND sl.merchant_id = ol.merchant_id
		  )`,
	).Scan(&s.OrderCount, &s.Total)
	if err != nil {
		return models.PendingSettlementSummary{}, classify(err, "summarize pending settlements")
	}
	return s, nil
}

// SumPlatformFees sums platform fees of paid, delivered orders created in the period
func (r *LedgerReader) SumPlatformFees(ctx context.Context, db ports.DBTX, period models.Period) (decimal.Decimal, error) {
	return r.sum(ctx, db, "sum platform fees", `
		SELECT COALESCE(SUM(platform_fee), 0)
		FROM orders
		WHERE status = 'delivered' AND payment_status = 'paid'
		  AND created_at >= $1 AND created_at < $2`, period.From, period.To)
}

// SumGatewayFees sums payment gateway fees of paid orders created in the period
func (r *LedgerReader) SumGatewayFees(ctx context.Context, db ports.DBTX, period models.Period) (decimal.Decimal, error) {
	return r.sum(ctx, db, "sum gateway fees", `
		SELECT COALESCE(SUM(gateway_fee), 0)
		FROM orders
		WHERE payment_status = 'paid'
		  AND created_at >= $1 AND created_at < $2`, period.From, period.To)
}

// SumReclaimableInputVAT sums VAT on approved, reclaimable, unreclaimed expenses
func (r *LedgerReader) SumReclaimableInputVAT(ctx context.Context, db ports.DBTX, period models.Period) (decimal.Decimal, error) {
	return r.sum(ctx, db, "sum input vat", `
		SELECT COALESCE(SUM(vat_amount), 0)
		FROM expenses
		WHERE status = 'approved'
		  AND is_vat_reclaimable
		  AND NOT vat_reclaimed
		  AND incurred_at >= $1 AND incurred_at < $2`, period.From, period.To)
}

// SumDeductibleExpenses sums approved, tax-deductible operational expenses
func (r *LedgerReader) SumDeductibleExpenses(ctx context.Context, db ports.DBTX, period models.Period) (decimal.Decimal, error) {
	return r.sum(ctx, db, "sum deductible expenses", `
		SELECT COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE status = 'approved'
		  AND is_tax_deductible
		  AND incurred_at >= $1 AND incurred_at < $2`, period.From, period.To)
}

// dateParam renders an instant as its UTC calendar date
func dateParam(t time.Time) string {
	return t.UTC().Format(timeutil.DateLayout)
}
