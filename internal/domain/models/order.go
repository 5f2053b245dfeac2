package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the fulfillment state of an order
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderRefunded  OrderStatus = "refunded"
	OrderCancelled OrderStatus = "cancelled"
)

// PaymentStatus represents whether payment was captured upstream
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Order is created upstream by checkout. The ledger only reads it, stamps
// settlement eligibility and flips it to refunded on a full refund.
type Order struct {
	ID                   string
	Status               OrderStatus
	PaymentStatus        PaymentStatus
	GrandTotal           decimal.Decimal // tax-inclusive
	PlatformFee          decimal.Decimal
	GatewayFee           decimal.Decimal
	DeliveredAt          *time.Time
	SettlementEligibleAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// OrderLine is one product sold by one merchant within an order.
// Commission fields are frozen once at order time.
type OrderLine struct {
	ID         string
	OrderID    string
	ProductID  string
	MerchantID string // empty when no merchant is assigned
	Quantity   int
	UnitPrice  decimal.Decimal // tax-inclusive
	Subtotal   decimal.Decimal // Quantity x UnitPrice

	CommissionRate        decimal.Decimal
	CommissionType        CommissionType
	CommissionFixedAmount decimal.Decimal
	CommissionAmount      decimal.Decimal
	CommissionSource      CommissionSource
	CommissionRuleID      *string
	CommissionFrozenAt    *time.Time

	// Refund bookkeeping, the only fields mutated after creation
	RefundedQuantity   int
	CommissionReversed decimal.Decimal

	CreatedAt time.Time
}

// ComputedSubtotal returns Quantity x UnitPrice
func (l *OrderLine) ComputedSubtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// UnrefundedQuantity returns how many units may still be refunded
func (l *OrderLine) UnrefundedQuantity() int {
	return l.Quantity - l.RefundedQuantity
}

// RemainingCommission returns the frozen commission not yet reversed by refunds
func (l *OrderLine) RemainingCommission() decimal.Decimal {
	return l.CommissionAmount.Sub(l.CommissionReversed)
}

// IsCommissionFrozen returns true once the resolver wrote a commission onto the line
func (l *OrderLine) IsCommissionFrozen() bool {
	return l.CommissionFrozenAt != nil
}

// Merchant holds what the ledger needs to know about a seller
type Merchant struct {
	ID                       string
	Name                     string
	DefaultCommissionPercent decimal.Decimal
	IsActive                 bool
}

// Product is the catalog entry referenced by order lines
type Product struct {
	ID          string
	MerchantID  string
	CategoryIDs []string
	Stock       int
}

// Invoice is issued upstream per merchant and order
type Invoice struct {
	ID         string
	OrderID    string
	MerchantID string
	Number     string
}

// Period is a half-open instant range [From, To) used by reports
type Period struct {
	From time.Time
	To   time.Time
}
