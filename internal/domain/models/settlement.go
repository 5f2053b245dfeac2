package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus represents the payout state of a settlement
type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementPaid    SettlementStatus = "paid"
)

// Settlement is one merchant's payout batch for one payout date.
// Immutable once created except Status, TransactionReference and PaidAt.
type Settlement struct {
	ID         string
	MerchantID string
	PayoutDate time.Time

	// Financial summary
	TotalOrderAmount decimal.Decimal // tax-inclusive, sum of line order totals
	Subtotal         decimal.Decimal // tax-exclusive, backed out of TotalOrderAmount
	TaxAmount        decimal.Decimal
	CommissionAmount decimal.Decimal
	CommissionTax    decimal.Decimal
	MerchantPayout   decimal.Decimal // TotalOrderAmount - CommissionAmount - CommissionTax

	OrderCount int
	LineCount  int

	Status               SettlementStatus
	TransactionReference *string
	PaidAt               *time.Time

	Lines []SettlementLine

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPaid returns true once the payout was sent
func (s *Settlement) IsPaid() bool {
	return s.Status == SettlementPaid
}

// SettlementLine aggregates one order's contribution to a settlement.
// (OrderID, MerchantID) is unique across all settlement lines.
type SettlementLine struct {
	ID               string
	SettlementID     string
	OrderID          string
	MerchantID       string
	OrderTotal       decimal.Decimal
	CommissionAmount decimal.Decimal
	LineCount        int
	CreatedAt        time.Time
}

// EligibleLine is an order line that passed every settlement filter
type EligibleLine struct {
	OrderLineID      string
	OrderID          string
	MerchantID       string
	Subtotal         decimal.Decimal
	CommissionAmount decimal.Decimal
}
