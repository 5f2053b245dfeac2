// Package tax derives VAT and corporate tax figures from ledger totals.
// Every function here is pure; the Service only loads inputs.
package tax

import (
	"time"

	"github.com/kevin07696/marketplace-ledger/internal/config"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Split is a tax-inclusive amount separated into net and tax parts
type Split struct {
	Exclusive decimal.Decimal
	Tax       decimal.Decimal
}

// BackOut separates a tax-inclusive amount at ratePercent:
// excl = round(incl / (1 + r/100), 2), tax = round(incl - excl, 2).
func BackOut(inclusive, ratePercent decimal.Decimal) (Split, error) {
	if inclusive.IsNegative() {
		return Split{}, domain.ErrNegativeAmount.WithDetail("amount", inclusive.String())
	}
	divisor := one.Add(ratePercent.Div(hundred))
	if !divisor.IsPositive() {
		return Split{}, domain.ErrDegenerateAmount.WithDetail("rate", ratePercent.String())
	}

	excl := inclusive.Div(divisor).Round(2)
	return Split{
		Exclusive: excl,
		Tax:       inclusive.Sub(excl).Round(2),
	}, nil
}

// ApplyRate returns round(amount * ratePercent / 100, 2)
func ApplyRate(amount, ratePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(ratePercent).Div(hundred).Round(2)
}

// VATReturn is the VAT position for a period
type VATReturn struct {
	PeriodStart   time.Time       `json:"period_start"`
	PeriodEnd     time.Time       `json:"period_end"`
	VATRate       decimal.Decimal `json:"vat_rate"`
	GMV           decimal.Decimal `json:"gmv"`
	TaxableSales  decimal.Decimal `json:"taxable_sales"`
	OutputVAT     decimal.Decimal `json:"output_vat"`
	InputVAT      decimal.Decimal `json:"input_vat"`
	NetVATPayable decimal.Decimal `json:"net_vat_payable"`
}

// ComputeVATReturn derives output VAT from tax-inclusive GMV and nets reclaimable input VAT
func ComputeVATReturn(from, to time.Time, gmv, inputVAT, vatRate decimal.Decimal) (*VATReturn, error) {
	split, err := BackOut(gmv, vatRate)
	if err != nil {
		return nil, err
	}

	return &VATReturn{
		PeriodStart:   from,
		PeriodEnd:     to,
		VATRate:       vatRate,
		GMV:           gmv,
		TaxableSales:  split.Exclusive,
		OutputVAT:     split.Tax,
		InputVAT:      inputVAT,
		NetVATPayable: split.Tax.Sub(inputVAT),
	}, nil
}

// CorporateTaxInput holds the ledger figures that feed corporate tax
type CorporateTaxInput struct {
	CommissionEarned    decimal.Decimal `json:"commission_earned"`
	PlatformFeeRevenue  decimal.Decimal `json:"platform_fee_revenue"`
	GatewayFees         decimal.Decimal `json:"gateway_fees"`
	CommissionReversed  decimal.Decimal `json:"commission_reversed"`
	OperationalExpenses decimal.Decimal `json:"operational_expenses"`
}

// CorporateTaxReport is the corporate tax computation for a period
type CorporateTaxReport struct {
	PeriodStart           time.Time         `json:"period_start"`
	PeriodEnd             time.Time         `json:"period_end"`
	Revenue               decimal.Decimal   `json:"revenue"`
	Expenses              decimal.Decimal   `json:"expenses"`
	GrossProfit           decimal.Decimal   `json:"gross_profit"`
	TaxableProfit         decimal.Decimal   `json:"taxable_profit"`
	Threshold             decimal.Decimal   `json:"threshold"`
	TaxableAboveThreshold decimal.Decimal   `json:"taxable_above_threshold"`
	TaxRate               decimal.Decimal   `json:"tax_rate"`
	TaxDue                decimal.Decimal   `json:"tax_due"`
	Breakdown             CorporateTaxInput `json:"breakdown"`
}

// ComputeCorporateTax applies the tax-free threshold and corporate rate to gross profit.
// Losses are never carried: taxable profit is floored at zero.
func ComputeCorporateTax(from, to time.Time, in CorporateTaxInput, cfg config.LedgerConfig) *CorporateTaxReport {
	revenue := in.CommissionEarned.Add(in.PlatformFeeRevenue)
	expenses := in.GatewayFees.Add(in.CommissionReversed).Add(in.OperationalExpenses)
	gross := revenue.Sub(expenses)

	taxable := decimal.Max(decimal.Zero, gross)
	above := decimal.Max(decimal.Zero, taxable.Sub(cfg.TaxFreeThreshold))

	return &CorporateTaxReport{
		PeriodStart:           from,
		PeriodEnd:             to,
		Revenue:               revenue,
		Expenses:              expenses,
		GrossProfit:           gross,
		TaxableProfit:         taxable,
		Threshold:             cfg.TaxFreeThreshold,
		TaxableAboveThreshold: above,
		TaxRate:               cfg.CorporateTaxRate,
		TaxDue:                ApplyRate(above, cfg.CorporateTaxRate),
		Breakdown:             in,
	}
}
