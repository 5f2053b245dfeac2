package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RefundSummary aggregates processed refunds for a period
type RefundSummary struct {
	Count              int
	TotalRefunded      decimal.Decimal
	CommissionReversed decimal.Decimal
	MerchantRecovery   decimal.Decimal
}

// DebitNoteSummary aggregates debit notes issued in a period
type DebitNoteSummary struct {
	Count int
	Total decimal.Decimal
}

// PendingSettlementSummary describes delivered, paid orders not yet settled
type PendingSettlementSummary struct {
	OrderCount int
	Total      decimal.Decimal
}

// Reconciliation is a point-in-time snapshot of period totals
type Reconciliation struct {
	ID          string
	PeriodStart time.Time
	PeriodEnd   time.Time

	GMV               decimal.Decimal
	CommissionEarned  decimal.Decimal // settled commission
	CommissionAccrued decimal.Decimal // frozen commission on eligible, unsettled lines
	TaxCollected      decimal.Decimal

	Refunds         RefundSummary
	SettlementsPaid decimal.Decimal
	DebitNotes      DebitNoteSummary

	NetPlatformRevenue       decimal.Decimal
	ExpectedMerchantPayables decimal.Decimal
	DiscrepancyAmount        decimal.Decimal

	PendingSettlements PendingSettlementSummary
	DiscrepancyNotes   string

	CreatedAt time.Time
}

// HasDiscrepancy returns true when the absolute discrepancy exceeds tolerance
func (r *Reconciliation) HasDiscrepancy(tolerance decimal.Decimal) bool {
	return r.DiscrepancyAmount.Abs().GreaterThan(tolerance)
}
