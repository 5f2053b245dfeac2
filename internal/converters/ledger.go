package converters

import (
	"time"

	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// Money renders an amount with two decimals
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// StringOrEmpty returns empty string if pointer is nil, otherwise returns the value
func StringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// SettlementLineResponse is the JSON view of a settlement line
type SettlementLineResponse struct {
	OrderID          string `json:"order_id"`
	OrderTotal       string `json:"order_total"`
	CommissionAmount string `json:"commission_amount"`
	LineCount        int    `json:"line_count"`
}

// SettlementResponse is the JSON view of a settlement
type SettlementResponse struct {
	ID                   string                   `json:"id"`
	MerchantID           string                   `json:"merchant_id"`
	PayoutDate           string                   `json:"payout_date"`
	TotalOrderAmount     string                   `json:"total_order_amount"`
	Subtotal             string                   `json:"subtotal"`
	TaxAmount            string                   `json:"tax_amount"`
	CommissionAmount     string                   `json:"commission_amount"`
	CommissionTax        string                   `json:"commission_tax"`
	MerchantPayout       string                   `json:"merchant_payout"`
	OrderCount           int                      `json:"order_count"`
	LineCount            int                      `json:"line_count"`
	Status               string                   `json:"status"`
	TransactionReference string                   `json:"transaction_reference,omitempty"`
	PaidAt               *string                  `json:"paid_at,omitempty"`
	Lines                []SettlementLineResponse `json:"lines,omitempty"`
	CreatedAt            string                   `json:"created_at"`
}

// SettlementToResponse converts a settlement to its JSON view
func SettlementToResponse(s *models.Settlement) SettlementResponse {
	resp := SettlementResponse{
		ID:                   s.ID,
		MerchantID:           s.MerchantID,
		PayoutDate:           s.PayoutDate.Format(timeutil.DateLayout),
		TotalOrderAmount:     Money(s.TotalOrderAmount),
		Subtotal:             Money(s.Subtotal),
		TaxAmount:            Money(s.TaxAmount),
		CommissionAmount:     Money(s.CommissionAmount),
		CommissionTax:        Money(s.CommissionTax),
		MerchantPayout:       Money(s.MerchantPayout),
		OrderCount:           s.OrderCount,
		LineCount:            s.LineCount,
		Status:               string(s.Status),
		TransactionReference: StringOrEmpty(s.TransactionReference),
		PaidAt:               formatTime(s.PaidAt),
		CreatedAt:            s.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, l := range s.Lines {
		resp.Lines = append(resp.Lines, SettlementLineResponse{
			OrderID:          l.OrderID,
			OrderTotal:       Money(l.OrderTotal),
			CommissionAmount: Money(l.CommissionAmount),
			LineCount:        l.LineCount,
		})
	}
	return resp
}

// SettlementsToResponse converts a page of settlements
func SettlementsToResponse(list []*models.Settlement) []SettlementResponse {
	out := make([]SettlementResponse, 0, len(list))
	for _, s := range list {
		out = append(out, SettlementToResponse(s))
	}
	return out
}

// RefundLineResponse is the JSON view of a refund line
type RefundLineResponse struct {
	OrderLineID        string `json:"order_line_id"`
	ProductID          string `json:"product_id"`
	Quantity           int    `json:"quantity"`
	Reason             string `json:"reason,omitempty"`
	Subtotal           string `json:"subtotal"`
	TaxAmount          string `json:"tax_amount"`
	Total              string `json:"total"`
	CommissionReversed string `json:"commission_reversed"`
	StockRestored      bool   `json:"stock_restored"`
}

// RefundResponse is the JSON view of a refund
type RefundResponse struct {
	ID                     string               `json:"id"`
	OrderID                string               `json:"order_id"`
	MerchantID             string               `json:"merchant_id"`
	Type                   string               `json:"type"`
	Status                 string               `json:"status"`
	ReasonCategory         string               `json:"reason_category,omitempty"`
	Notes                  string               `json:"notes,omitempty"`
	Subtotal               string               `json:"subtotal"`
	TaxAmount              string               `json:"tax_amount"`
	Total                  string               `json:"total"`
	CommissionToReverse    string               `json:"commission_to_reverse"`
	IsPostSettlement       bool                 `json:"is_post_settlement"`
	MerchantRecoveryAmount string               `json:"merchant_recovery_amount"`
	ApprovedBy             string               `json:"approved_by,omitempty"`
	ApprovedAt             *string              `json:"approved_at,omitempty"`
	ProcessedAt            *string              `json:"processed_at,omitempty"`
	Lines                  []RefundLineResponse `json:"lines"`
	CreatedAt              string               `json:"created_at"`
}

// RefundToResponse converts a refund to its JSON view
func RefundToResponse(r *models.Refund) RefundResponse {
	resp := RefundResponse{
		ID:                     r.ID,
		OrderID:                r.OrderID,
		MerchantID:             r.MerchantID,
		Type:                   string(r.Type),
		Status:                 string(r.Status),
		ReasonCategory:         r.ReasonCategory,
		Notes:                  r.Notes,
		Subtotal:               Money(r.Subtotal),
		TaxAmount:              Money(r.TaxAmount),
		Total:                  Money(r.Total),
		CommissionToReverse:    Money(r.CommissionToReverse),
		IsPostSettlement:       r.IsPostSettlement,
		MerchantRecoveryAmount: Money(r.MerchantRecoveryAmount),
		ApprovedBy:             StringOrEmpty(r.ApprovedBy),
		ApprovedAt:             formatTime(r.ApprovedAt),
		ProcessedAt:            formatTime(r.ProcessedAt),
		Lines:                  make([]RefundLineResponse, 0, len(r.Lines)),
		CreatedAt:              r.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, l := range r.Lines {
		resp.Lines = append(resp.Lines, RefundLineResponse{
			OrderLineID:        l.OrderLineID,
			ProductID:          l.ProductID,
			Quantity:           l.Quantity,
			Reason:             l.Reason,
			Subtotal:           Money(l.Subtotal),
			TaxAmount:          Money(l.TaxAmount),
			Total:              Money(l.Total),
			CommissionReversed: Money(l.CommissionReversed),
			StockRestored:      l.StockRestored,
		})
	}
	return resp
}

// CreditNoteResponse is the JSON view of a credit note
type CreditNoteResponse struct {
	ID                 string `json:"id"`
	Number             string `json:"number"`
	RefundID           string `json:"refund_id"`
	InvoiceID          string `json:"invoice_id,omitempty"`
	Subtotal           string `json:"subtotal"`
	TaxAmount          string `json:"tax_amount"`
	Total              string `json:"total"`
	CommissionReversed string `json:"commission_reversed"`
	IssuedAt           string `json:"issued_at"`
}

// CreditNoteToResponse converts a credit note; nil stays nil
func CreditNoteToResponse(n *models.CreditNote) *CreditNoteResponse {
	if n == nil {
		return nil
	}
	return &CreditNoteResponse{
		ID:                 n.ID,
		Number:             n.Number,
		RefundID:           n.RefundID,
		InvoiceID:          StringOrEmpty(n.InvoiceID),
		Subtotal:           Money(n.Subtotal),
		TaxAmount:          Money(n.TaxAmount),
		Total:              Money(n.Total),
		CommissionReversed: Money(n.CommissionReversed),
		IssuedAt:           n.IssuedAt.UTC().Format(time.RFC3339),
	}
}

// DebitNoteResponse is the JSON view of a merchant debit note
type DebitNoteResponse struct {
	ID                 string `json:"id"`
	Number             string `json:"number"`
	RefundID           string `json:"refund_id"`
	OrderID            string `json:"order_id"`
	MerchantID         string `json:"merchant_id"`
	SettlementID       string `json:"settlement_id,omitempty"`
	RecoveryAmount     string `json:"recovery_amount"`
	CommissionReversed string `json:"commission_reversed"`
	Status             string `json:"status"`
	IssuedAt           string `json:"issued_at"`
}

// DebitNoteToResponse converts a debit note; nil stays nil
func DebitNoteToResponse(n *models.MerchantDebitNote) *DebitNoteResponse {
	if n == nil {
		return nil
	}
	return &DebitNoteResponse{
		ID:                 n.ID,
		Number:             n.Number,
		RefundID:           n.RefundID,
		OrderID:            n.OrderID,
		MerchantID:         n.MerchantID,
		SettlementID:       StringOrEmpty(n.SettlementID),
		RecoveryAmount:     Money(n.RecoveryAmount),
		CommissionReversed: Money(n.CommissionReversed),
		Status:             string(n.Status),
		IssuedAt:           n.IssuedAt.UTC().Format(time.RFC3339),
	}
}

// DebitNotesToResponse converts a page of debit notes
func DebitNotesToResponse(list []*models.MerchantDebitNote) []DebitNoteResponse {
	out := make([]DebitNoteResponse, 0, len(list))
	for _, n := range list {
		out = append(out, *DebitNoteToResponse(n))
	}
	return out
}

// ReconciliationResponse is the JSON view of a reconciliation snapshot
type ReconciliationResponse struct {
	ID                       string `json:"id"`
	PeriodStart              string `json:"period_start"`
	PeriodEnd                string `json:"period_end"`
	GMV                      string `json:"gmv"`
	CommissionEarned         string `json:"commission_earned"`
	CommissionAccrued        string `json:"commission_accrued"`
	TaxCollected             string `json:"tax_collected"`
	RefundCount              int    `json:"refund_count"`
	TotalRefunded            string `json:"total_refunded"`
	CommissionReversed       string `json:"commission_reversed"`
	MerchantRecovery         string `json:"merchant_recovery"`
	SettlementsPaid          string `json:"settlements_paid"`
	DebitNoteCount           int    `json:"debit_note_count"`
	DebitNoteTotal           string `json:"debit_note_total"`
	NetPlatformRevenue       string `json:"net_platform_revenue"`
	ExpectedMerchantPayables string `json:"expected_merchant_payables"`
	DiscrepancyAmount        string `json:"discrepancy_amount"`
	PendingOrderCount        int    `json:"pending_order_count"`
	PendingTotal             string `json:"pending_total"`
	DiscrepancyNotes         string `json:"discrepancy_notes,omitempty"`
	CreatedAt                string `json:"created_at"`
}

// ReconciliationToResponse converts a reconciliation snapshot
func ReconciliationToResponse(r *models.Reconciliation) ReconciliationResponse {
	return ReconciliationResponse{
		ID:                       r.ID,
		PeriodStart:              r.PeriodStart.UTC().Format(time.RFC3339),
		PeriodEnd:                r.PeriodEnd.UTC().Format(time.RFC3339),
		GMV:                      Money(r.GMV),
		CommissionEarned:         Money(r.CommissionEarned),
		CommissionAccrued:        Money(r.CommissionAccrued),
		TaxCollected:             Money(r.TaxCollected),
		RefundCount:              r.Refunds.Count,
		TotalRefunded:            Money(r.Refunds.TotalRefunded),
		CommissionReversed:       Money(r.Refunds.CommissionReversed),
		MerchantRecovery:         Money(r.Refunds.MerchantRecovery),
		SettlementsPaid:          Money(r.SettlementsPaid),
		DebitNoteCount:           r.DebitNotes.Count,
		DebitNoteTotal:           Money(r.DebitNotes.Total),
		NetPlatformRevenue:       Money(r.NetPlatformRevenue),
		ExpectedMerchantPayables: Money(r.ExpectedMerchantPayables),
		DiscrepancyAmount:        Money(r.DiscrepancyAmount),
		PendingOrderCount:        r.PendingSettlements.OrderCount,
		PendingTotal:             Money(r.PendingSettlements.Total),
		DiscrepancyNotes:         r.DiscrepancyNotes,
		CreatedAt:                r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ReconciliationsToResponse converts a list of snapshots
func ReconciliationsToResponse(list []*models.Reconciliation) []ReconciliationResponse {
	out := make([]ReconciliationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, ReconciliationToResponse(r))
	}
	return out
}

// OrderLineCommissionResponse is the JSON view of an order line's frozen commission
type OrderLineCommissionResponse struct {
	OrderLineID           string  `json:"order_line_id"`
	OrderID               string  `json:"order_id"`
	MerchantID            string  `json:"merchant_id"`
	Subtotal              string  `json:"subtotal"`
	CommissionType        string  `json:"commission_type"`
	CommissionRate        string  `json:"commission_rate"`
	CommissionFixedAmount string  `json:"commission_fixed_amount"`
	CommissionAmount      string  `json:"commission_amount"`
	CommissionSource      string  `json:"commission_source"`
	CommissionRuleID      string  `json:"commission_rule_id,omitempty"`
	FrozenAt              *string `json:"frozen_at,omitempty"`
	AlreadyFrozen         bool    `json:"already_frozen"`
}

// OrderLineCommissionToResponse converts a frozen order line
func OrderLineCommissionToResponse(l *models.OrderLine, alreadyFrozen bool) OrderLineCommissionResponse {
	return OrderLineCommissionResponse{
		OrderLineID:           l.ID,
		OrderID:               l.OrderID,
		MerchantID:            l.MerchantID,
		Subtotal:              Money(l.Subtotal),
		CommissionType:        string(l.CommissionType),
		CommissionRate:        l.CommissionRate.String(),
		CommissionFixedAmount: Money(l.CommissionFixedAmount),
		CommissionAmount:      Money(l.CommissionAmount),
		CommissionSource:      string(l.CommissionSource),
		CommissionRuleID:      StringOrEmpty(l.CommissionRuleID),
		FrozenAt:              formatTime(l.CommissionFrozenAt),
		AlreadyFrozen:         alreadyFrozen,
	}
}
