package settlement

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/marketplace-ledger/internal/config"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/domain/models"
	"github.com/kevin07696/marketplace-ledger/internal/services/tax"
	"github.com/kevin07696/marketplace-ledger/pkg/timeutil"
	"github.com/shopspring/decimal"
)

// BuildSettlement aggregates one merchant's eligible lines into a pending
// settlement with one settlement line per distinct order.
//
//	total_order_amount = sum of tax-inclusive line subtotals
//	subtotal, tax      = back-out of total_order_amount at the VAT rate
//	commission_tax     = round(commission * vat / 100, 2)
//	merchant_payout    = total_order_amount - commission - commission_tax
func BuildSettlement(merchantID string, payoutDate time.Time, lines []models.EligibleLine, cfg config.LedgerConfig) (*models.Settlement, error) {
	now := timeutil.Now()
	s := &models.Settlement{
		ID:               uuid.New().String(),
		MerchantID:       merchantID,
		PayoutDate:       payoutDate,
		TotalOrderAmount: decimal.Zero,
		CommissionAmount: decimal.Zero,
		Status:           models.SettlementPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	byOrder := make(map[string]*models.SettlementLine)
	for _, line := range lines {
		if line.MerchantID != merchantID {
			return nil, domain.ErrValidationFailed.
				WithDetail("merchant_id", merchantID).
				WithDetail("order_line_id", line.OrderLineID)
		}

		sl, ok := byOrder[line.OrderID]
		if !ok {
			sl = &models.SettlementLine{
				ID:               uuid.New().String(),
				SettlementID:     s.ID,
				OrderID:          line.OrderID,
				MerchantID:       merchantID,
				OrderTotal:       decimal.Zero,
				CommissionAmount: decimal.Zero,
				CreatedAt:        now,
			}
			byOrder[line.OrderID] = sl
		}
		sl.OrderTotal = sl.OrderTotal.Add(line.Subtotal)
		sl.CommissionAmount = sl.CommissionAmount.Add(line.CommissionAmount)
		sl.LineCount++

		s.TotalOrderAmount = s.TotalOrderAmount.Add(line.Subtotal)
		s.CommissionAmount = s.CommissionAmount.Add(line.CommissionAmount)
		s.LineCount++
	}

	s.Lines = make([]models.SettlementLine, 0, len(byOrder))
	for _, sl := range byOrder {
		s.Lines = append(s.Lines, *sl)
	}
	sort.Slice(s.Lines, func(i, j int) bool { return s.Lines[i].OrderID < s.Lines[j].OrderID })
	s.OrderCount = len(s.Lines)

	split, err := tax.BackOut(s.TotalOrderAmount, cfg.VATRate)
	if err != nil {
		return nil, err
	}
	s.Subtotal = split.Exclusive
	s.TaxAmount = split.Tax
	s.CommissionTax = tax.ApplyRate(s.CommissionAmount, cfg.VATRate)
	s.MerchantPayout = s.TotalOrderAmount.Sub(s.CommissionAmount).Sub(s.CommissionTax).Round(2)

	if s.MerchantPayout.IsNegative() {
		return nil, domain.ErrNegativeAmount.
			WithDetail("merchant_id", merchantID).
			WithDetail("merchant_payout", s.MerchantPayout.String())
	}

	return s, nil
}
