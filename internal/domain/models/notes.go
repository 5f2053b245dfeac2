package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditNote mirrors a processed refund for invoicing
type CreditNote struct {
	ID                 string
	Number             string
	RefundID           string
	OrderID            string
	MerchantID         string
	InvoiceID          *string
	Subtotal           decimal.Decimal
	TaxAmount          decimal.Decimal
	Total              decimal.Decimal
	CommissionReversed decimal.Decimal
	IssuedAt           time.Time
}

// DebitNoteStatus tracks out-of-band collection of a debit note
type DebitNoteStatus string

const (
	DebitNoteOutstanding DebitNoteStatus = "outstanding"
	DebitNoteSettled     DebitNoteStatus = "settled"
)

// MerchantDebitNote claws back net payout already sent for a refunded order.
// It references a settlement but never modifies it.
type MerchantDebitNote struct {
	ID                 string
	Number             string
	RefundID           string
	OrderID            string
	MerchantID         string
	SettlementID       *string
	RecoveryAmount     decimal.Decimal
	CommissionReversed decimal.Decimal
	Status             DebitNoteStatus
	IssuedAt           time.Time
}
