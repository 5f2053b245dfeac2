package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RefundType distinguishes whole-order refunds from partial ones
type RefundType string

const (
	RefundFull    RefundType = "full"
	RefundPartial RefundType = "partial"
)

// RefundStatus tracks the refund state machine: pending -> approved -> processed
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundApproved  RefundStatus = "approved"
	RefundProcessed RefundStatus = "processed"
)

// IsValid returns true for known refund types
func (t RefundType) IsValid() bool {
	return t == RefundFull || t == RefundPartial
}

// Refund records money returned to a customer for one merchant's lines of an order
type Refund struct {
	ID             string
	OrderID        string
	MerchantID     string
	Type           RefundType
	ReasonCategory string
	Notes          string

	Subtotal            decimal.Decimal // tax-exclusive
	TaxAmount           decimal.Decimal
	Total               decimal.Decimal // tax-inclusive
	CommissionToReverse decimal.Decimal

	// IsPostSettlement is fixed at creation. CommissionToReverse and the
	// recovery amount are recomputed against the locked order lines when the
	// refund is processed.
	IsPostSettlement       bool
	MerchantRecoveryAmount decimal.Decimal

	Status      RefundStatus
	ApprovedBy  *string
	ApprovedAt  *time.Time
	ProcessedAt *time.Time

	Lines []RefundLine

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanApprove returns true when the refund is waiting for approval
func (r *Refund) CanApprove() bool {
	return r.Status == RefundPending
}

// CanProcess returns true when the refund was approved and not yet processed
func (r *Refund) CanProcess() bool {
	return r.Status == RefundApproved
}

// IsProcessed returns true for the terminal state
func (r *Refund) IsProcessed() bool {
	return r.Status == RefundProcessed
}

// NeedsDebitNote returns true when funds must be recovered from the merchant
func (r *Refund) NeedsDebitNote() bool {
	return r.IsPostSettlement && r.MerchantRecoveryAmount.IsPositive()
}

// RefundLine is the refunded part of one order line
type RefundLine struct {
	ID                 string
	RefundID           string
	OrderLineID        string
	ProductID          string
	Quantity           int
	Reason             string
	Subtotal           decimal.Decimal // tax-exclusive
	TaxAmount          decimal.Decimal
	Total              decimal.Decimal // tax-inclusive
	CommissionReversed decimal.Decimal
	StockRestored      bool
	CreatedAt          time.Time
}
