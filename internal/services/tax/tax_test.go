package tax_test

import (
	"testing"
	"time"

	"github.com/kevin07696/marketplace-ledger/internal/config"
	"github.com/kevin07696/marketplace-ledger/internal/domain"
	"github.com/kevin07696/marketplace-ledger/internal/services/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBackOut(t *testing.T) {
	tests := []struct {
		name      string
		inclusive string
		rate      string
		wantExcl  string
		wantTax   string
	}{
		{name: "round amount", inclusive: "10500.00", rate: "5", wantExcl: "10000.00", wantTax: "500.00"},
		{name: "needs rounding", inclusive: "99.99", rate: "5", wantExcl: "95.23", wantTax: "4.76"},
		{name: "single cent", inclusive: "0.01", rate: "5", wantExcl: "0.01", wantTax: "0.00"},
		{name: "zero amount", inclusive: "0", rate: "5", wantExcl: "0", wantTax: "0"},
		{name: "zero rate", inclusive: "250.00", rate: "0", wantExcl: "250.00", wantTax: "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split, err := tax.BackOut(d(tt.inclusive), d(tt.rate))
			require.NoError(t, err)

			assert.True(t, split.Exclusive.Equal(d(tt.wantExcl)), "exclusive = %s", split.Exclusive)
			assert.True(t, split.Tax.Equal(d(tt.wantTax)), "tax = %s", split.Tax)
			// Parts always re-add to the inclusive amount
			assert.True(t, split.Exclusive.Add(split.Tax).Equal(d(tt.inclusive)))
		})
	}
}

func TestBackOut_RejectsDegenerateInputs(t *testing.T) {
	_, err := tax.BackOut(d("-1"), d("5"))
	assert.True(t, domain.IsComputationError(err))
	assert.ErrorIs(t, err, domain.ErrNegativeAmount)

	_, err = tax.BackOut(d("100"), d("-100"))
	assert.ErrorIs(t, err, domain.ErrDegenerateAmount)
}

func TestApplyRate(t *testing.T) {
	assert.True(t, tax.ApplyRate(d("1000"), d("5")).Equal(d("50")))
	assert.True(t, tax.ApplyRate(d("33.33"), d("10")).Equal(d("3.33")))
	assert.True(t, tax.ApplyRate(d("0.05"), d("10")).Equal(d("0.01")))
}

func TestComputeVATReturn(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	report, err := tax.ComputeVATReturn(from, to, d("10500"), d("120"), d("5"))
	require.NoError(t, err)

	assert.True(t, report.TaxableSales.Equal(d("10000")))
	assert.True(t, report.OutputVAT.Equal(d("500")))
	assert.True(t, report.InputVAT.Equal(d("120")))
	assert.True(t, report.NetVATPayable.Equal(d("380")))
	assert.Equal(t, from, report.PeriodStart)
	assert.Equal(t, to, report.PeriodEnd)
}

func TestComputeVATReturn_InputExceedsOutput(t *testing.T) {
	report, err := tax.ComputeVATReturn(time.Time{}, time.Time{}, d("105"), d("20"), d("5"))
	require.NoError(t, err)

	// A refund position is reported as negative payable
	assert.True(t, report.NetVATPayable.Equal(d("-15")))
}

func TestComputeCorporateTax(t *testing.T) {
	cfg := config.DefaultLedger()

	tests := []struct {
		name        string
		in          tax.CorporateTaxInput
		wantGross   string
		wantTaxable string
		wantAbove   string
		wantTaxDue  string
	}{
		{
			name: "above threshold",
			in: tax.CorporateTaxInput{
				CommissionEarned:    d("450000"),
				PlatformFeeRevenue:  d("50000"),
				GatewayFees:         d("30000"),
				CommissionReversed:  d("20000"),
				OperationalExpenses: d("30000"),
			},
			wantGross:   "420000",
			wantTaxable: "420000",
			wantAbove:   "45000",
			wantTaxDue:  "4050.00",
		},
		{
			name: "below threshold",
			in: tax.CorporateTaxInput{
				CommissionEarned: d("300000"),
			},
			wantGross:   "300000",
			wantTaxable: "300000",
			wantAbove:   "0",
			wantTaxDue:  "0",
		},
		{
			name: "loss",
			in: tax.CorporateTaxInput{
				CommissionEarned: d("1000"),
				GatewayFees:      d("5000"),
			},
			wantGross:   "-4000",
			wantTaxable: "0",
			wantAbove:   "0",
			wantTaxDue:  "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := tax.ComputeCorporateTax(time.Time{}, time.Time{}, tt.in, cfg)

			assert.True(t, report.GrossProfit.Equal(d(tt.wantGross)), "gross = %s", report.GrossProfit)
			assert.True(t, report.TaxableProfit.Equal(d(tt.wantTaxable)), "taxable = %s", report.TaxableProfit)
			assert.True(t, report.TaxableAboveThreshold.Equal(d(tt.wantAbove)), "above = %s", report.TaxableAboveThreshold)
			assert.True(t, report.TaxDue.Equal(d(tt.wantTaxDue)), "tax due = %s", report.TaxDue)
		})
	}
}

func TestComputeCorporateTax_RevenueAndExpenses(t *testing.T) {
	in := tax.CorporateTaxInput{
		CommissionEarned:    d("450000"),
		PlatformFeeRevenue:  d("50000"),
		GatewayFees:         d("30000"),
		CommissionReversed:  d("20000"),
		OperationalExpenses: d("30000"),
	}

	report := tax.ComputeCorporateTax(time.Time{}, time.Time{}, in, config.DefaultLedger())

	assert.True(t, report.Revenue.Equal(d("500000")))
	assert.True(t, report.Expenses.Equal(d("80000")))
	assert.Equal(t, in, report.Breakdown)
}
